package interceptor

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// 認証ゲートウェイが付与するメタデータのキーです。
const (
	MetadataAccountID  = "x-account-id"
	MetadataRole       = "x-role"
	MetadataEmployeeID = "x-employee-id"
)

// SessionUnaryInterceptor はメタデータからセッションを組み立ててコンテキストに格納します。
// x-account-id がない呼び出しはセッションなしのまま処理され、各サービスが Unauthenticated を返します。
func SessionUnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		sess, ok, err := sessionFromMetadata(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			ctx = access.WithSession(ctx, sess)
		}
		return handler(ctx, req)
	}
}

func sessionFromMetadata(ctx context.Context) (access.Session, bool, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return access.Session{}, false, nil
	}

	accountID := firstValue(md, MetadataAccountID)
	if accountID == "" {
		return access.Session{}, false, nil
	}

	sess := access.Session{
		AccountID: accountID,
		Role:      access.ParseRole(firstValue(md, MetadataRole)),
	}

	if raw := firstValue(md, MetadataEmployeeID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return access.Session{}, false, status.Error(codes.InvalidArgument, "invalid x-employee-id")
		}
		employeeID := id.String()
		sess.EmployeeID = &employeeID
	}

	return sess, true, nil
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
