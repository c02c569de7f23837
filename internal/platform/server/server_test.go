package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/adapters/grpc/handler"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/adapters/grpc/interceptor"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/adapters/repository/memory"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()

	authz, err := access.NewPolicyAuthorizer()
	if err != nil {
		t.Fatalf("NewPolicyAuthorizer returned error: %v", err)
	}

	store := memory.NewStore()
	deptSvc := department.NewService(store.Departments(), store.Employees(), store.Accounts(), authz, nil, nil, store)
	empSvc := employee.NewService(store.Employees(), store.Accounts(), store.Departments(), authz, nil, store)

	srv := New("bufnet", Services{Employees: empSvc, Departments: deptSvc}, nil,
		grpc.ChainUnaryInterceptor(interceptor.SessionUnaryInterceptor()),
	)

	lis := bufconn.Listen(1024 * 1024)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServer_HealthAndSession(t *testing.T) {
	t.Parallel()

	conn := startServer(t)
	ctx := context.Background()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: handler.EmployeeServiceName})
	if err != nil {
		t.Fatalf("health check returned error: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", resp.GetStatus())
	}

	req, _ := structpb.NewStruct(map[string]any{})
	err = conn.Invoke(ctx, "/org.v1.DepartmentService/ListDepartments", req, new(structpb.Struct))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected Unauthenticated without session, got %v", err)
	}

	adminCtx := metadata.AppendToOutgoingContext(ctx, interceptor.MetadataAccountID, "admin", interceptor.MetadataRole, "HRADMIN")
	created := new(structpb.Struct)
	createReq, _ := structpb.NewStruct(map[string]any{"name": "Engineering"})
	if err := conn.Invoke(adminCtx, "/org.v1.DepartmentService/CreateDepartment", createReq, created); err != nil {
		t.Fatalf("CreateDepartment returned error: %v", err)
	}
	if created.GetFields()["department"].GetStructValue().GetFields()["status"].GetStringValue() != "ACTIVE" {
		t.Fatalf("unexpected response %v", created)
	}

	listed := new(structpb.Struct)
	if err := conn.Invoke(adminCtx, "/org.v1.DepartmentService/ListDepartments", req, listed); err != nil {
		t.Fatalf("ListDepartments returned error: %v", err)
	}
	if listed.GetFields()["total"].GetNumberValue() != 1 {
		t.Fatalf("expected 1 department, got %v", listed)
	}
}
