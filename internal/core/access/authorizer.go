package access

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
)

// Object は認可対象のリソース種別です。
type Object string

const (
	ObjectEmployees   Object = "employees"
	ObjectDepartments Object = "departments"
)

// Action は認可対象の操作です。
type Action string

const (
	ActionList             Action = "list"
	ActionRead             Action = "read"
	ActionCreate           Action = "create"
	ActionUpdate           Action = "update"
	ActionUpdatePrivileged Action = "update_privileged"
	ActionDeactivate       Action = "deactivate"
	ActionDelete           Action = "delete"
)

//go:embed rbac_model.conf
var defaultModel string

//go:embed rbac_policy.csv
var defaultPolicy string

// Authorizer はロールに対する操作可否を判定します。
type Authorizer interface {
	Authorize(s Session, obj Object, act Action) error
}

// PolicyAuthorizer は casbin のポリシーでロール単位の操作可否を判定します。
// 行レベルの可視範囲はここでは扱わず、スコープ述語で制御します。
type PolicyAuthorizer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

// NewPolicyAuthorizer は組み込みのモデルとポリシーで PolicyAuthorizer を生成します。
func NewPolicyAuthorizer() (*PolicyAuthorizer, error) {
	return NewPolicyAuthorizerFromText(defaultModel, defaultPolicy)
}

// NewPolicyAuthorizerFromText は任意のモデル定義とポリシー行から PolicyAuthorizer を生成します。
func NewPolicyAuthorizerFromText(modelText, policyText string) (*PolicyAuthorizer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("access: parse model: %w", err)
	}

	enf, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policyText))
	if err != nil {
		return nil, fmt.Errorf("access: create enforcer: %w", err)
	}

	return &PolicyAuthorizer{enforcer: enf}, nil
}

// Authorize は許可されていない場合に ErrForbidden を返します。
func (a *PolicyAuthorizer) Authorize(s Session, obj Object, act Action) error {
	if !s.Role.Valid() {
		return ErrForbidden
	}

	a.mu.RLock()
	allowed, err := a.enforcer.Enforce(string(s.Role), string(obj), string(act))
	a.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("access: enforce: %w", err)
	}
	if !allowed {
		return fmt.Errorf("%s %s: %w", act, obj, ErrForbidden)
	}
	return nil
}
