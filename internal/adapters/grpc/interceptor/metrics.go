package interceptor

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/metrics"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MetricsUnaryInterceptor はリクエスト数とレイテンシ、アクセス拒否を記録します。
func MetricsUnaryInterceptor(c *metrics.Collectors) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		c.ObserveRequest(info.FullMethod, code.String(), time.Since(start))
		if code == codes.Unauthenticated || code == codes.PermissionDenied {
			role := "NONE"
			if sess, ok := access.SessionFromContext(ctx); ok {
				role = string(sess.Role)
			}
			c.ObserveDenial(info.FullMethod, role, code.String())
		}
		return resp, err
	}
}
