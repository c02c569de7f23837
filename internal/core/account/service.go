package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/validation"
)

// Clock は現在時刻を提供します。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// TransactionManager はトランザクション制御の抽象化です。
type TransactionManager interface {
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// EmailLookup はメールアドレスが社員側で使用済みかを確認します。
type EmailLookup interface {
	EmailInUse(ctx context.Context, email string) (bool, error)
}

// Service はログインアカウントに関するユースケースをまとめます。
type Service struct {
	repo   Repository
	hasher PasswordHasher
	emails EmailLookup
	clock  Clock
	tx     TransactionManager
}

// NewService は Service を生成します。emails が nil の場合は社員側の重複確認を行いません。
func NewService(repo Repository, hasher PasswordHasher, emails EmailLookup, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	return &Service{repo: repo, hasher: hasher, emails: emails, clock: clock, tx: tx}
}

// BootstrapAdminInput は管理者アカウント作成時の入力です。
type BootstrapAdminInput struct {
	Email    string
	Password string
}

// BootstrapAdmin は社員に紐づかない HRADMIN アカウントを作成します。
func (s *Service) BootstrapAdmin(ctx context.Context, in BootstrapAdminInput) (*Account, error) {
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Password) == "" {
		return nil, ErrInvalidPassword
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	var created *Account
	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureEmailNotExists(txCtx, email); err != nil {
			return err
		}

		now := s.clock.Now()
		result, err := s.repo.Create(txCtx, &Account{
			Email:        email,
			PasswordHash: hash,
			Role:         access.RoleHRAdmin,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return err
		}
		created = result
		return nil
	}); err != nil {
		return nil, err
	}

	return created, nil
}

func (s *Service) ensureEmailNotExists(ctx context.Context, email string) error {
	found, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrAccountNotFound) {
		return err
	}
	if found != nil {
		return ErrEmailAlreadyExists
	}

	if s.emails == nil {
		return nil
	}
	inUse, err := s.emails.EmailInUse(ctx, email)
	if err != nil {
		return err
	}
	if inUse {
		return ErrEmailAlreadyExists
	}
	return nil
}

// NormalizeEmail は前後の空白を除き小文字化したメールアドレスを返します。
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > 254 {
		return "", ErrInvalidEmail
	}
	if err := validation.Var(email, "email"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
