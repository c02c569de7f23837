package access

import (
	"context"
	"strings"
)

// Role はログインアカウントに付与されるロールです。
type Role string

const (
	RoleHRAdmin  Role = "HRADMIN"
	RoleManager  Role = "MANAGER"
	RoleEmployee Role = "EMPLOYEE"
	// RoleUnknown は認識できないロールを表し、すべての操作が拒否されます。
	RoleUnknown Role = "UNKNOWN"
)

// ParseRole は文字列をロールに変換します。未知の値は RoleUnknown になります。
func ParseRole(raw string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleHRAdmin:
		return RoleHRAdmin
	case RoleManager:
		return RoleManager
	case RoleEmployee:
		return RoleEmployee
	default:
		return RoleUnknown
	}
}

// Valid は既知のロールかどうかを返します。
func (r Role) Valid() bool {
	switch r {
	case RoleHRAdmin, RoleManager, RoleEmployee:
		return true
	default:
		return false
	}
}

// Session は認証済みの呼び出し元を表します。
// 認証そのものは上流のゲートウェイが行い、ここでは結果のみを受け取ります。
type Session struct {
	AccountID  string
	Role       Role
	EmployeeID *string
}

// IsAdmin は HRADMIN ロールかどうかを返します。
func (s Session) IsAdmin() bool {
	return s.Role == RoleHRAdmin
}

// LinkedEmployeeID は紐づく社員 ID を返します。紐づきがない場合は false です。
func (s Session) LinkedEmployeeID() (string, bool) {
	if s.EmployeeID == nil || *s.EmployeeID == "" {
		return "", false
	}
	return *s.EmployeeID, true
}

// IsSelf は指定された社員 ID が呼び出し元自身かどうかを返します。
func (s Session) IsSelf(employeeID string) bool {
	id, ok := s.LinkedEmployeeID()
	return ok && id == employeeID
}

type sessionContextKey struct{}

// WithSession はセッションをコンテキストに格納します。
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

// SessionFromContext はコンテキストからセッションを取り出します。
func SessionFromContext(ctx context.Context) (Session, bool) {
	if ctx == nil {
		return Session{}, false
	}
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	if !ok || strings.TrimSpace(s.AccountID) == "" {
		return Session{}, false
	}
	return s, true
}

// RequireSession はセッションを取り出し、存在しなければ ErrUnauthenticated を返します。
func RequireSession(ctx context.Context) (Session, error) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return Session{}, ErrUnauthenticated
	}
	return s, nil
}
