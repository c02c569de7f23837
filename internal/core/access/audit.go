package access

import "context"

// AuditEvent は更新系操作の監査イベントです。
type AuditEvent struct {
	Action        Action
	Object        Object
	TargetID      string
	Actor         Session
	Success       bool
	FailureReason string
}

// Auditor は監査イベントの記録先です。
type Auditor interface {
	Record(ctx context.Context, event AuditEvent)
}

// NopAuditor は何も記録しない Auditor です。
type NopAuditor struct{}

// Record は何もしません。
func (NopAuditor) Record(context.Context, AuditEvent) {}

// NewAuditEvent は操作結果から監査イベントを組み立てます。
func NewAuditEvent(actor Session, obj Object, act Action, targetID string, err error) AuditEvent {
	ev := AuditEvent{
		Action:   act,
		Object:   obj,
		TargetID: targetID,
		Actor:    actor,
		Success:  err == nil,
	}
	if err != nil {
		ev.FailureReason = err.Error()
	}
	return ev
}
