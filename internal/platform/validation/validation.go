// Package validation は go-playground/validator の共有インスタンスを提供します。
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator は共有の validator を返します。フィールド名は json タグを優先します。
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		instance = v
	})
	return instance
}

// Struct は構造体を検証します。
func Struct(s any) error {
	return Validator().Struct(s)
}

// Var は単一の値をタグで検証します。
func Var(value any, tag string) error {
	return Validator().Var(value, tag)
}

// FirstInvalidField は検証エラーから最初に失敗したフィールド名を返します。
func FirstInvalidField(err error) (string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "", false
	}
	return verrs[0].Field(), true
}

// MapFirst は最初に失敗したフィールドを対応するエラーへ変換します。
// 対応が見つからない場合は fallback を返します。
func MapFirst(err error, byField map[string]error, fallback error) error {
	if err == nil {
		return nil
	}
	field, ok := FirstInvalidField(err)
	if !ok {
		return fallback
	}
	if mapped, ok := byField[field]; ok {
		return mapped
	}
	return fallback
}
