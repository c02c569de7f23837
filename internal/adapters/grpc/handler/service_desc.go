package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	EmployeeServiceName   = "org.v1.EmployeeService"
	DepartmentServiceName = "org.v1.DepartmentService"
)

// EmployeeServiceServer は org.v1.EmployeeService のサーバー実装が満たすインターフェースです。
type EmployeeServiceServer interface {
	ListEmployees(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeactivateEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// DepartmentServiceServer は org.v1.DepartmentService のサーバー実装が満たすインターフェースです。
type DepartmentServiceServer interface {
	ListDepartments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDepartment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateDepartment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateDepartment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteDepartment(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// EmployeeServiceDesc は社員サービスのサービス記述子です。
var EmployeeServiceDesc = grpc.ServiceDesc{
	ServiceName: EmployeeServiceName,
	HandlerType: (*EmployeeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(EmployeeServiceName, "ListEmployees", EmployeeServiceServer.ListEmployees),
		unaryMethod(EmployeeServiceName, "GetEmployee", EmployeeServiceServer.GetEmployee),
		unaryMethod(EmployeeServiceName, "CreateEmployee", EmployeeServiceServer.CreateEmployee),
		unaryMethod(EmployeeServiceName, "UpdateEmployee", EmployeeServiceServer.UpdateEmployee),
		unaryMethod(EmployeeServiceName, "DeactivateEmployee", EmployeeServiceServer.DeactivateEmployee),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "org/v1/employee.proto",
}

// DepartmentServiceDesc は部署サービスのサービス記述子です。
var DepartmentServiceDesc = grpc.ServiceDesc{
	ServiceName: DepartmentServiceName,
	HandlerType: (*DepartmentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(DepartmentServiceName, "ListDepartments", DepartmentServiceServer.ListDepartments),
		unaryMethod(DepartmentServiceName, "GetDepartment", DepartmentServiceServer.GetDepartment),
		unaryMethod(DepartmentServiceName, "CreateDepartment", DepartmentServiceServer.CreateDepartment),
		unaryMethod(DepartmentServiceName, "UpdateDepartment", DepartmentServiceServer.UpdateDepartment),
		unaryMethod(DepartmentServiceName, "DeleteDepartment", DepartmentServiceServer.DeleteDepartment),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "org/v1/department.proto",
}

// RegisterEmployeeServiceServer は社員サービスを登録します。
func RegisterEmployeeServiceServer(s grpc.ServiceRegistrar, srv EmployeeServiceServer) {
	s.RegisterService(&EmployeeServiceDesc, srv)
}

// RegisterDepartmentServiceServer は部署サービスを登録します。
func RegisterDepartmentServiceServer(s grpc.ServiceRegistrar, srv DepartmentServiceServer) {
	s.RegisterService(&DepartmentServiceDesc, srv)
}

func unaryMethod[S any](service, method string, call func(S, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(S), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(S), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
