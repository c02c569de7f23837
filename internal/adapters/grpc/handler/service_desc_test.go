package handler

import (
	"context"
	"net"
	"testing"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestServiceDesc_RoundTrip(t *testing.T) {
	t.Parallel()

	lis := bufconn.Listen(1024 * 1024)
	var intercepted string
	srv := grpc.NewServer(grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		intercepted = info.FullMethod
		return next(ctx, req)
	}))

	empStub := &stubEmployeeUseCase{getOut: sampleEmployee()}
	deptStub := &stubDepartmentUseCase{getErr: status.Error(codes.NotFound, "department: not found")}
	RegisterEmployeeServiceServer(srv, NewEmployeeGrpcHandler(empStub))
	RegisterDepartmentServiceServer(srv, NewDepartmentGrpcHandler(deptStub))

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	req, _ := structpb.NewStruct(map[string]any{"id": "emp-1"})
	out := new(structpb.Struct)
	if err := conn.Invoke(context.Background(), "/org.v1.EmployeeService/GetEmployee", req, out); err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}

	if empStub.getInput != (employee.GetEmployeeInput{ID: "emp-1"}) {
		t.Fatalf("unexpected input %+v", empStub.getInput)
	}
	if out.GetFields()["employee"].GetStructValue().GetFields()["email"].GetStringValue() != "eve@example.com" {
		t.Fatalf("unexpected response %v", out)
	}
	if intercepted != "/org.v1.EmployeeService/GetEmployee" {
		t.Fatalf("expected interceptor to see full method, got %q", intercepted)
	}

	err = conn.Invoke(context.Background(), "/org.v1.DepartmentService/GetDepartment", req, new(structpb.Struct))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
