package department

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/account"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
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
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

type noopTransactionManager struct{}

func (noopTransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (noopTransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

// Service は部署に関するユースケースをまとめます。
type Service struct {
	repo      Repository
	employees EmployeeDirectory
	accounts  account.Repository
	authz     access.Authorizer
	audit     access.Auditor
	clock     Clock
	tx        TransactionManager
}

// UseCase は部署ユースケースの公開インターフェースです。
type UseCase interface {
	ListDepartments(ctx context.Context, in ListDepartmentsInput) (*ListDepartmentsResult, error)
	GetDepartment(ctx context.Context, in GetDepartmentInput) (*Department, error)
	CreateDepartment(ctx context.Context, in CreateDepartmentInput) (*Department, error)
	UpdateDepartment(ctx context.Context, in UpdateDepartmentInput) (*Department, error)
	DeleteDepartment(ctx context.Context, in DeleteDepartmentInput) error
}

// NewService は Service を生成します。audit が nil の場合は監査を記録しません。
func NewService(repo Repository, employees EmployeeDirectory, accounts account.Repository, authz access.Authorizer, audit access.Auditor, clock Clock, tx TransactionManager) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	if audit == nil {
		audit = access.NopAuditor{}
	}
	return &Service{
		repo:      repo,
		employees: employees,
		accounts:  accounts,
		authz:     authz,
		audit:     audit,
		clock:     clock,
		tx:        tx,
	}
}

// ListDepartmentsInput は一覧取得時の入力です。
type ListDepartmentsInput struct {
	Filter   Filter
	Sort     *query.SortInput
	Page     int
	PageSize int
}

// ListDepartmentsResult は一覧取得結果を表します。
type ListDepartmentsResult struct {
	Departments []*Department
	Total       int
	Page        int
	PageSize    int
}

// GetDepartmentInput は部署取得時の入力です。
type GetDepartmentInput struct {
	ID string
}

// CreateDepartmentInput は部署作成時の入力です。
type CreateDepartmentInput struct {
	Name      string
	Status    *Status
	ManagerID *string
}

// UpdateDepartmentInput は部署更新時の入力です。ManagerIDSet が true で ManagerID が nil の場合は責任者を解除します。
type UpdateDepartmentInput struct {
	ID           string
	Name         *string
	Status       *Status
	ManagerID    *string
	ManagerIDSet bool
}

// DeleteDepartmentInput は部署削除時の入力です。
type DeleteDepartmentInput struct {
	ID string
}

// ListDepartments は可視範囲内の部署を絞り込み、並び替えてページ単位で返します。
func (s *Service) ListDepartments(ctx context.Context, in ListDepartmentsInput) (*ListDepartmentsResult, error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(sess, access.ObjectDepartments, access.ActionList); err != nil {
		return nil, err
	}

	filterExpr, err := in.Filter.Expr()
	if err != nil {
		return nil, err
	}

	sort, err := query.ResolveSort(in.Sort, SortKeys...)
	if err != nil {
		return nil, err
	}

	page := query.NewPage(in.Page, in.PageSize)
	result := &ListDepartmentsResult{Departments: []*Department{}, Page: page.Number, PageSize: page.Size}

	where := query.Conj(Scope(sess), filterExpr)
	if query.IsNone(where) {
		return result, nil
	}

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		items, total, err := s.repo.List(txCtx, ListCriteria{Where: where, Sort: sort, Page: page})
		if err != nil {
			return err
		}
		result.Departments = items
		result.Total = total
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// GetDepartment は可視範囲内の部署を取得します。範囲外の部署は存在しない部署と同じ扱いです。
func (s *Service) GetDepartment(ctx context.Context, in GetDepartmentInput) (*Department, error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(sess, access.ObjectDepartments, access.ActionRead); err != nil {
		return nil, err
	}

	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}

	where := query.Conj(Scope(sess), query.IDs(id))
	if query.IsNone(where) {
		return nil, ErrDepartmentNotFound
	}

	var found *Department
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.repo.FindOne(txCtx, where)
		if err != nil {
			return err
		}
		found = result
		return nil
	}); err != nil {
		return nil, err
	}

	return found, nil
}

// CreateDepartment は部署を作成します。責任者が指定された場合は同じトランザクションで昇格させます。
func (s *Service) CreateDepartment(ctx context.Context, in CreateDepartmentInput) (created *Department, err error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		targetID := ""
		if created != nil {
			targetID = created.ID
		}
		s.audit.Record(ctx, access.NewAuditEvent(sess, access.ObjectDepartments, access.ActionCreate, targetID, err))
	}()

	if err := s.authz.Authorize(sess, access.ObjectDepartments, access.ActionCreate); err != nil {
		return nil, err
	}

	name, err := normalizeName(in.Name)
	if err != nil {
		return nil, err
	}

	status := StatusActive
	if in.Status != nil {
		st, err := ParseStatus(string(*in.Status))
		if err != nil {
			return nil, err
		}
		status = st
	}

	managerID, err := normalizeOptionalID(in.ManagerID)
	if err != nil {
		return nil, fmt.Errorf("managerId: %w", err)
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureNameNotExists(txCtx, name, ""); err != nil {
			return err
		}

		now := s.clock.Now()
		if managerID != nil {
			if err := s.assignManager(txCtx, *managerID, now); err != nil {
				return err
			}
		}

		dept, err := s.repo.Create(txCtx, &Department{
			Name:      name,
			Status:    status,
			ManagerID: managerID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}

		result, err := s.repo.FindByID(txCtx, dept.ID)
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

// UpdateDepartment は部署を部分更新します。
func (s *Service) UpdateDepartment(ctx context.Context, in UpdateDepartmentInput) (updated *Department, err error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.audit.Record(ctx, access.NewAuditEvent(sess, access.ObjectDepartments, access.ActionUpdate, in.ID, err))
	}()

	if err := s.authz.Authorize(sess, access.ObjectDepartments, access.ActionUpdate); err != nil {
		return nil, err
	}

	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}

	var name *string
	if in.Name != nil {
		v, err := normalizeName(*in.Name)
		if err != nil {
			return nil, err
		}
		name = &v
	}

	var status *Status
	if in.Status != nil {
		st, err := ParseStatus(string(*in.Status))
		if err != nil {
			return nil, err
		}
		status = &st
	}

	var managerID *string
	if in.ManagerIDSet {
		managerID, err = normalizeOptionalID(in.ManagerID)
		if err != nil {
			return nil, fmt.Errorf("managerId: %w", err)
		}
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}

		now := s.clock.Now()

		if name != nil && *name != existing.Name {
			if err := s.ensureNameNotExists(txCtx, *name, existing.ID); err != nil {
				return err
			}
			existing.Name = *name
		}
		if status != nil {
			existing.Status = *status
		}
		if in.ManagerIDSet {
			if managerID != nil {
				if err := s.assignManager(txCtx, *managerID, now); err != nil {
					return err
				}
			}
			existing.ManagerID = managerID
		}

		existing.UpdatedAt = now
		if _, err := s.repo.Update(txCtx, existing); err != nil {
			return err
		}

		result, err := s.repo.FindByID(txCtx, existing.ID)
		if err != nil {
			return err
		}
		updated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return updated, nil
}

// DeleteDepartment は所属者のいない部署を削除します。
func (s *Service) DeleteDepartment(ctx context.Context, in DeleteDepartmentInput) (err error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		s.audit.Record(ctx, access.NewAuditEvent(sess, access.ObjectDepartments, access.ActionDelete, in.ID, err))
	}()

	if err := s.authz.Authorize(sess, access.ObjectDepartments, access.ActionDelete); err != nil {
		return err
	}

	id, err := normalizeID(in.ID)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}

	return s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.FindByID(txCtx, id); err != nil {
			return err
		}

		members, err := s.repo.CountMembers(txCtx, id)
		if err != nil {
			return err
		}
		if members > 0 {
			return ErrDepartmentNotEmpty
		}

		return s.repo.Delete(txCtx, id)
	})
}

func (s *Service) ensureNameNotExists(ctx context.Context, name, selfID string) error {
	found, err := s.repo.FindByName(ctx, name)
	if err != nil && !errors.Is(err, ErrDepartmentNotFound) {
		return err
	}
	if found != nil && found.ID != selfID {
		return ErrNameAlreadyExists
	}
	return nil
}

// assignManager は責任者の存在を確認し、紐づくアカウントが EMPLOYEE であれば MANAGER に昇格させます。
// HRADMIN や既に MANAGER のアカウント、アカウントを持たない社員はそのままです。
func (s *Service) assignManager(ctx context.Context, managerID string, now time.Time) error {
	ok, err := s.employees.Exists(ctx, managerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrManagerNotFound
	}

	acc, err := s.accounts.FindByEmployeeID(ctx, managerID)
	if errors.Is(err, account.ErrAccountNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if acc.Role != access.RoleEmployee {
		return nil
	}
	return s.accounts.UpdateRole(ctx, acc.ID, access.RoleManager, now)
}

func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := validation.Var(name, "required,max=200"); err != nil {
		return "", ErrInvalidName
	}
	return name, nil
}

func normalizeOptionalID(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := normalizeID(*raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
