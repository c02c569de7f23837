// Package memory はすべてのリポジトリをプロセス内メモリで実装します。
//
// 読み書きトランザクションはストア全体を排他ロックし、開始時点のスナップショットを保持して
// エラー時に復元します。述語は query.Eval で評価します。
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/account"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
)

var errReadOnlyTx = errors.New("memory: write in read-only transaction")

type membershipKey struct {
	EmployeeID   string
	DepartmentID string
}

type dataset struct {
	accounts    map[string]account.Account
	employees   map[string]employee.Employee
	departments map[string]department.Department
	memberships map[membershipKey]time.Time
}

func newDataset() *dataset {
	return &dataset{
		accounts:    make(map[string]account.Account),
		employees:   make(map[string]employee.Employee),
		departments: make(map[string]department.Department),
		memberships: make(map[membershipKey]time.Time),
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		accounts:    maps.Clone(d.accounts),
		employees:   maps.Clone(d.employees),
		departments: maps.Clone(d.departments),
		memberships: maps.Clone(d.memberships),
	}
}

// Store はメモリ上のデータセットです。ゼロ値ではなく NewStore で生成してください。
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

// NewStore は空の Store を生成します。
func NewStore() *Store {
	return &Store{data: newDataset()}
}

type txState struct {
	store    *Store
	writable bool
}

type txContextKey struct{}

func (s *Store) txFromContext(ctx context.Context) (txState, bool) {
	if ctx == nil {
		return txState{}, false
	}
	st, ok := ctx.Value(txContextKey{}).(txState)
	if !ok || st.store != s {
		return txState{}, false
	}
	return st, true
}

// WithinReadOnly は共有ロックを保持したまま fn を実行します。
func (s *Store) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("memory: transaction function is required")
	}
	if _, ok := s.txFromContext(ctx); ok {
		return fn(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(context.WithValue(ctx, txContextKey{}, txState{store: s}))
}

// WithinReadWrite は排他ロックを保持したまま fn を実行し、エラー時は開始時点の状態に戻します。
func (s *Store) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("memory: transaction function is required")
	}
	if st, ok := s.txFromContext(ctx); ok {
		if !st.writable {
			return errReadOnlyTx
		}
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(context.WithValue(ctx, txContextKey{}, txState{store: s, writable: true})); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) read(ctx context.Context, fn func(d *dataset) error) error {
	if _, ok := s.txFromContext(ctx); ok {
		return fn(s.data)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.data)
}

// write はトランザクション外では単一操作を排他ロック下で実行し、失敗時は元に戻します。
func (s *Store) write(ctx context.Context, fn func(d *dataset) error) error {
	if st, ok := s.txFromContext(ctx); ok {
		if !st.writable {
			return errReadOnlyTx
		}
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(s.data); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// Accounts はログインアカウントのリポジトリを返します。
func (s *Store) Accounts() *AccountRepository {
	return &AccountRepository{store: s}
}

// Employees は社員のリポジトリを返します。
func (s *Store) Employees() *EmployeeRepository {
	return &EmployeeRepository{store: s}
}

// Departments は部署のリポジトリを返します。
func (s *Store) Departments() *DepartmentRepository {
	return &DepartmentRepository{store: s}
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
