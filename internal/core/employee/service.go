package employee

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

// Service は社員に関するユースケースをまとめます。
type Service struct {
	repo            Repository
	accounts        account.Repository
	departments     DepartmentDirectory
	authz           access.Authorizer
	audit           access.Auditor
	hasher          account.PasswordHasher
	clock           Clock
	tx              TransactionManager
	defaultPassword string
}

// UseCase は社員ユースケースの公開インターフェースです。
type UseCase interface {
	ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error)
	GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error)
	CreateEmployee(ctx context.Context, in CreateEmployeeInput) (*Employee, error)
	UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (*Employee, error)
	DeactivateEmployee(ctx context.Context, in DeactivateEmployeeInput) (*Employee, error)
}

// Option は Service の任意設定です。
type Option func(*Service)

// WithAuditor は監査イベントの記録先を設定します。
func WithAuditor(a access.Auditor) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

// WithPasswordHasher はパスワードハッシュ実装を設定します。
func WithPasswordHasher(h account.PasswordHasher) Option {
	return func(s *Service) {
		if h != nil {
			s.hasher = h
		}
	}
}

// WithDefaultPassword は新規アカウントの初期パスワードを設定します。
func WithDefaultPassword(password string) Option {
	return func(s *Service) {
		s.defaultPassword = password
	}
}

// NewService は Service を生成します。
func NewService(repo Repository, accounts account.Repository, departments DepartmentDirectory, authz access.Authorizer, clock Clock, tx TransactionManager, opts ...Option) *Service {
	if clock == nil {
		clock = realClock{}
	}
	if tx == nil {
		tx = noopTransactionManager{}
	}
	s := &Service{
		repo:        repo,
		accounts:    accounts,
		departments: departments,
		authz:       authz,
		audit:       access.NopAuditor{},
		hasher:      account.NewBcryptHasher(0),
		clock:       clock,
		tx:          tx,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListEmployeesInput は一覧取得時の入力です。
type ListEmployeesInput struct {
	Filter   Filter
	Sort     *query.SortInput
	Page     int
	PageSize int
}

// ListEmployeesResult は一覧取得結果を表します。
type ListEmployeesResult struct {
	Employees []*Employee
	Total     int
	Page      int
	PageSize  int
}

// GetEmployeeInput は社員取得時の入力です。
type GetEmployeeInput struct {
	ID string
}

// CreateEmployeeInput は社員作成時の入力です。
type CreateEmployeeInput struct {
	FirstName     string   `json:"firstName" validate:"required,max=100"`
	LastName      string   `json:"lastName" validate:"required,max=100"`
	Telephone     string   `json:"telephone" validate:"max=32"`
	Email         string   `json:"email" validate:"required,max=254,email"`
	Status        *Status  `json:"-" validate:"-"`
	ManagerID     *string  `json:"-" validate:"-"`
	DepartmentIDs []string `json:"-" validate:"-"`
}

// UpdateEmployeeInput は社員更新時の入力です。nil の項目は変更しません。
// ManagerIDSet と DepartmentIDsSet は値が空でも項目が指定されたことを表します。
type UpdateEmployeeInput struct {
	ID               string
	FirstName        *string
	LastName         *string
	Telephone        *string
	Email            *string
	Status           *Status
	ManagerID        *string
	ManagerIDSet     bool
	DepartmentIDs    []string
	DepartmentIDsSet bool
}

// privileged は管理者のみが変更できる項目が含まれているかを返します。
func (in UpdateEmployeeInput) privileged() bool {
	return in.Status != nil || in.ManagerIDSet || in.DepartmentIDsSet
}

// DeactivateEmployeeInput は社員無効化時の入力です。
type DeactivateEmployeeInput struct {
	ID string
}

var createFieldErrors = map[string]error{
	"firstName": ErrInvalidFirstName,
	"lastName":  ErrInvalidLastName,
	"telephone": ErrInvalidTelephone,
	"email":     ErrInvalidEmail,
}

// ListEmployees は可視範囲内の社員を絞り込み、並び替えてページ単位で返します。
func (s *Service) ListEmployees(ctx context.Context, in ListEmployeesInput) (*ListEmployeesResult, error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(sess, access.ObjectEmployees, access.ActionList); err != nil {
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
	result := &ListEmployeesResult{Employees: []*Employee{}, Page: page.Number, PageSize: page.Size}

	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		scope, err := Scope(txCtx, sess, s.departments)
		if err != nil {
			return err
		}

		where := query.Conj(scope, filterExpr)
		if query.IsNone(where) {
			return nil
		}

		items, total, err := s.repo.List(txCtx, ListCriteria{Where: where, Sort: sort, Page: page})
		if err != nil {
			return err
		}
		result.Employees = items
		result.Total = total
		return nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// GetEmployee は可視範囲内の社員を取得します。範囲外の社員は存在しない社員と同じ扱いです。
func (s *Service) GetEmployee(ctx context.Context, in GetEmployeeInput) (*Employee, error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(sess, access.ObjectEmployees, access.ActionRead); err != nil {
		return nil, err
	}

	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}

	var found *Employee
	if err := s.tx.WithinReadOnly(ctx, func(txCtx context.Context) error {
		result, err := s.findVisible(txCtx, sess, id)
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

// CreateEmployee は社員とログインアカウントを 1 トランザクションで作成し、相互に紐づけます。
func (s *Service) CreateEmployee(ctx context.Context, in CreateEmployeeInput) (created *Employee, err error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		targetID := ""
		if created != nil {
			targetID = created.ID
		}
		s.audit.Record(ctx, access.NewAuditEvent(sess, access.ObjectEmployees, access.ActionCreate, targetID, err))
	}()

	if err := s.authz.Authorize(sess, access.ObjectEmployees, access.ActionCreate); err != nil {
		return nil, err
	}

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Telephone = strings.TrimSpace(in.Telephone)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, validation.MapFirst(err, createFieldErrors, ErrInvalidEmail)
	}

	status := StatusActive
	if in.Status != nil {
		st, err := ParseStatus(string(*in.Status))
		if err != nil {
			return nil, err
		}
		status = st
	}

	var managerID *string
	if in.ManagerID != nil && strings.TrimSpace(*in.ManagerID) != "" {
		id, err := normalizeID(*in.ManagerID)
		if err != nil {
			return nil, fmt.Errorf("managerId: %w", err)
		}
		managerID = &id
	}

	departmentIDs, err := normalizeIDs(query.Unique(in.DepartmentIDs))
	if err != nil {
		return nil, fmt.Errorf("departmentIds: %w", err)
	}

	if s.defaultPassword == "" {
		return nil, ErrDefaultPasswordMissing
	}
	hash, err := s.hasher.Hash(s.defaultPassword)
	if err != nil {
		return nil, err
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		if err := s.ensureEmailAvailable(txCtx, in.Email, "", nil); err != nil {
			return err
		}
		if err := s.ensureDepartmentsExist(txCtx, departmentIDs); err != nil {
			return err
		}
		if managerID != nil {
			if err := s.ensureManagerExists(txCtx, *managerID); err != nil {
				return err
			}
		}

		now := s.clock.Now()
		acc, err := s.accounts.Create(txCtx, &account.Account{
			Email:        in.Email,
			PasswordHash: hash,
			Role:         access.RoleEmployee,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return translateAccountError(err)
		}

		emp, err := s.repo.Create(txCtx, &Employee{
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Telephone: in.Telephone,
			Email:     in.Email,
			Status:    status,
			ManagerID: managerID,
			AccountID: &acc.ID,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return err
		}

		if err := s.accounts.LinkEmployee(txCtx, acc.ID, emp.ID, now); err != nil {
			return translateAccountError(err)
		}

		if len(departmentIDs) > 0 {
			if err := s.repo.ReplaceDepartments(txCtx, emp.ID, departmentIDs, now); err != nil {
				return err
			}
		}

		result, err := s.repo.FindByID(txCtx, emp.ID)
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

// UpdateEmployee は社員を部分更新します。
//
// 管理者以外は自分自身の氏名、電話番号、メールアドレスのみ変更できます。
// 状態、上長、所属部署が指定された場合は値に関わらず ErrForbidden です。
func (s *Service) UpdateEmployee(ctx context.Context, in UpdateEmployeeInput) (updated *Employee, err error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.audit.Record(ctx, access.NewAuditEvent(sess, access.ObjectEmployees, access.ActionUpdate, in.ID, err))
	}()

	if err := s.authz.Authorize(sess, access.ObjectEmployees, access.ActionUpdate); err != nil {
		return nil, err
	}
	if in.privileged() {
		if err := s.authz.Authorize(sess, access.ObjectEmployees, access.ActionUpdatePrivileged); err != nil {
			return nil, err
		}
	}

	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	in.ID = id

	changes, err := normalizeUpdate(in)
	if err != nil {
		return nil, err
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.findMutable(txCtx, sess, id)
		if err != nil {
			return err
		}
		if err := s.repo.LockForUpdate(txCtx, id); err != nil {
			return err
		}

		now := s.clock.Now()

		if changes.FirstName != nil {
			existing.FirstName = *changes.FirstName
		}
		if changes.LastName != nil {
			existing.LastName = *changes.LastName
		}
		if changes.Telephone != nil {
			existing.Telephone = *changes.Telephone
		}
		if changes.Email != nil && *changes.Email != existing.Email {
			if err := s.ensureEmailAvailable(txCtx, *changes.Email, existing.ID, existing.AccountID); err != nil {
				return err
			}
			existing.Email = *changes.Email
			if existing.AccountID != nil {
				if err := s.accounts.UpdateEmail(txCtx, *existing.AccountID, existing.Email, now); err != nil {
					return translateAccountError(err)
				}
			}
		}
		if changes.Status != nil {
			existing.Status = *changes.Status
		}
		if changes.ManagerIDSet {
			if changes.ManagerID != nil {
				if err := s.ensureValidManager(txCtx, existing.ID, *changes.ManagerID); err != nil {
					return err
				}
			}
			existing.ManagerID = changes.ManagerID
		}

		existing.UpdatedAt = now
		if _, err := s.repo.Update(txCtx, existing); err != nil {
			return err
		}

		if changes.DepartmentIDsSet {
			if err := s.ensureDepartmentsExist(txCtx, changes.DepartmentIDs); err != nil {
				return err
			}
			if err := s.repo.ReplaceDepartments(txCtx, existing.ID, changes.DepartmentIDs, now); err != nil {
				return err
			}
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

// DeactivateEmployee は社員の状態を INACTIVE にします。
func (s *Service) DeactivateEmployee(ctx context.Context, in DeactivateEmployeeInput) (deactivated *Employee, err error) {
	sess, err := access.RequireSession(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		s.audit.Record(ctx, access.NewAuditEvent(sess, access.ObjectEmployees, access.ActionDeactivate, in.ID, err))
	}()

	if err := s.authz.Authorize(sess, access.ObjectEmployees, access.ActionDeactivate); err != nil {
		return nil, err
	}

	id, err := normalizeID(in.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}

	if err := s.tx.WithinReadWrite(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.repo.LockForUpdate(txCtx, id); err != nil {
			return err
		}

		existing.Status = StatusInactive
		existing.UpdatedAt = s.clock.Now()
		if _, err := s.repo.Update(txCtx, existing); err != nil {
			return err
		}

		result, err := s.repo.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		deactivated = result
		return nil
	}); err != nil {
		return nil, err
	}

	return deactivated, nil
}

func (s *Service) findVisible(ctx context.Context, sess access.Session, id string) (*Employee, error) {
	if sess.IsAdmin() {
		return s.repo.FindByID(ctx, id)
	}
	scope, err := Scope(ctx, sess, s.departments)
	if err != nil {
		return nil, err
	}
	where := query.Conj(scope, query.IDs(id))
	if query.IsNone(where) {
		return nil, ErrEmployeeNotFound
	}
	return s.repo.FindOne(ctx, where)
}

// findMutable は更新対象を取得します。管理者以外は参照できない社員を ErrEmployeeNotFound、
// 参照できるが本人でない社員を ErrForbidden とします。
func (s *Service) findMutable(ctx context.Context, sess access.Session, id string) (*Employee, error) {
	found, err := s.findVisible(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if !sess.IsAdmin() && !sess.IsSelf(found.ID) {
		return nil, fmt.Errorf("update employee: %w", access.ErrForbidden)
	}
	return found, nil
}

func (s *Service) ensureEmailAvailable(ctx context.Context, email, employeeID string, accountID *string) error {
	emp, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrEmployeeNotFound) {
		return err
	}
	if emp != nil && emp.ID != employeeID {
		return ErrEmailAlreadyExists
	}

	acc, err := s.accounts.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, account.ErrAccountNotFound) {
		return err
	}
	if acc != nil && (accountID == nil || acc.ID != *accountID) {
		return ErrEmailAlreadyExists
	}
	return nil
}

func (s *Service) ensureDepartmentsExist(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := s.departments.MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w", strings.Join(missing, ","), ErrDepartmentNotFound)
	}
	return nil
}

func (s *Service) ensureManagerExists(ctx context.Context, managerID string) error {
	ok, err := s.repo.Exists(ctx, managerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrManagerNotFound
	}
	return nil
}

// ensureValidManager は自己参照、存在しない上長、上長関係の循環を拒否します。
func (s *Service) ensureValidManager(ctx context.Context, employeeID, managerID string) error {
	if managerID == employeeID {
		return ErrManagerIsSelf
	}
	if err := s.ensureManagerExists(ctx, managerID); err != nil {
		return err
	}
	chain, err := s.repo.ManagerChain(ctx, managerID)
	if err != nil {
		return err
	}
	for _, id := range chain {
		if id == employeeID {
			return ErrManagerCycle
		}
	}
	return nil
}

type updateChanges struct {
	FirstName        *string
	LastName         *string
	Telephone        *string
	Email            *string
	Status           *Status
	ManagerID        *string
	ManagerIDSet     bool
	DepartmentIDs    []string
	DepartmentIDsSet bool
}

func normalizeUpdate(in UpdateEmployeeInput) (updateChanges, error) {
	var out updateChanges

	if in.FirstName != nil {
		v, err := normalizeField(*in.FirstName, "required,max=100", ErrInvalidFirstName)
		if err != nil {
			return out, err
		}
		out.FirstName = &v
	}
	if in.LastName != nil {
		v, err := normalizeField(*in.LastName, "required,max=100", ErrInvalidLastName)
		if err != nil {
			return out, err
		}
		out.LastName = &v
	}
	if in.Telephone != nil {
		v, err := normalizeField(*in.Telephone, "max=32", ErrInvalidTelephone)
		if err != nil {
			return out, err
		}
		out.Telephone = &v
	}
	if in.Email != nil {
		v, err := normalizeField(strings.ToLower(*in.Email), "required,max=254,email", ErrInvalidEmail)
		if err != nil {
			return out, err
		}
		out.Email = &v
	}
	if in.Status != nil {
		st, err := ParseStatus(string(*in.Status))
		if err != nil {
			return out, err
		}
		out.Status = &st
	}
	if in.ManagerIDSet {
		out.ManagerIDSet = true
		if in.ManagerID != nil && strings.TrimSpace(*in.ManagerID) != "" {
			id, err := normalizeID(*in.ManagerID)
			if err != nil {
				return out, fmt.Errorf("managerId: %w", err)
			}
			out.ManagerID = &id
		}
	}
	if in.DepartmentIDsSet {
		out.DepartmentIDsSet = true
		ids, err := normalizeIDs(query.Unique(in.DepartmentIDs))
		if err != nil {
			return out, fmt.Errorf("departmentIds: %w", err)
		}
		out.DepartmentIDs = ids
	}

	return out, nil
}

func normalizeField(raw, tag string, invalid error) (string, error) {
	v := strings.TrimSpace(raw)
	if err := validation.Var(v, tag); err != nil {
		return "", invalid
	}
	return v, nil
}

func translateAccountError(err error) error {
	if errors.Is(err, account.ErrEmailAlreadyExists) {
		return ErrEmailAlreadyExists
	}
	return err
}
