package account

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher はパスワードのハッシュ化を行います。
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher は bcrypt によるハッシュ実装です。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher は BcryptHasher を生成します。範囲外のコストは既定値に置き換えます。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash はパスワードのハッシュを返します。
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrInvalidPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrInvalidPassword
		}
		return "", fmt.Errorf("account: hash password: %w", err)
	}
	return string(b), nil
}

// Compare はハッシュとパスワードが一致しない場合にエラーを返します。
func (h *BcryptHasher) Compare(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidPassword
	}
	return nil
}
