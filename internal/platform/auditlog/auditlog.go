package auditlog

import (
	"context"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"go.uber.org/zap"
)

// Logger は監査イベントを構造化ログとして出力する access.Auditor です。
type Logger struct {
	logger *zap.Logger
}

var _ access.Auditor = (*Logger)(nil)

// New は Logger を生成します。
func New(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("audit")}
}

// Record は監査イベントを 1 行出力します。失敗した操作は Warn で出力します。
func (l *Logger) Record(_ context.Context, ev access.AuditEvent) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("action", string(ev.Action)),
		zap.String("entity", string(ev.Object)),
		zap.String("entity_id", ev.TargetID),
		zap.String("actor_account_id", ev.Actor.AccountID),
		zap.String("actor_role", string(ev.Actor.Role)),
		zap.Bool("success", ev.Success),
	}
	if empID, ok := ev.Actor.LinkedEmployeeID(); ok {
		fields = append(fields, zap.String("actor_employee_id", empID))
	}

	if ev.Success {
		l.logger.Info("mutation", fields...)
		return
	}
	fields = append(fields, zap.String("failure_reason", ev.FailureReason))
	l.logger.Warn("mutation", fields...)
}
