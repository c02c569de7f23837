package interceptor

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LoggingUnaryInterceptor は呼び出しごとに 1 行のアクセスログを出力します。ペイロードは出力しません。
func LoggingUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)

		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		if sess, ok := access.SessionFromContext(ctx); ok {
			fields = append(fields,
				zap.String("account_id", sess.AccountID),
				zap.String("role", string(sess.Role)),
			)
		}
		if err != nil {
			fields = append(fields, zap.String("error", status.Convert(err).Message()))
		}

		logger.Log(levelFor(code), "grpc request", fields...)
		return resp, err
	}
}

func levelFor(code codes.Code) zapcore.Level {
	switch code {
	case codes.OK:
		return zapcore.InfoLevel
	case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}
