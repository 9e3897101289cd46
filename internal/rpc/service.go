package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "ledger.v1.AccountService"

const (
	MethodSendMoney     = "/" + ServiceName + "/SendMoney"
	MethodGetBalance    = "/" + ServiceName + "/GetBalance"
	MethodCreateAccount = "/" + ServiceName + "/CreateAccount"
)

// AccountServiceServer is served over well-known protobuf messages so that no
// generated code is needed:
//
//	SendMoney(Struct{source_account_id, target_account_id, amount}) returns BoolValue
//	GetBalance(UInt64Value) returns Int64Value
//	CreateAccount(Empty) returns UInt64Value
type AccountServiceServer interface {
	SendMoney(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
	GetBalance(context.Context, *wrapperspb.UInt64Value) (*wrapperspb.Int64Value, error)
	CreateAccount(context.Context, *emptypb.Empty) (*wrapperspb.UInt64Value, error)
}

func RegisterAccountServiceServer(s grpc.ServiceRegistrar, srv AccountServiceServer) {
	s.RegisterService(&AccountServiceDesc, srv)
}

var AccountServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMoney", Handler: sendMoneyHandler},
		{MethodName: "GetBalance", Handler: getBalanceHandler},
		{MethodName: "CreateAccount", Handler: createAccountHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/account.proto",
}

func sendMoneyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccountServiceServer).SendMoney(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodSendMoney}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccountServiceServer).SendMoney(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getBalanceHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.UInt64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccountServiceServer).GetBalance(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetBalance}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccountServiceServer).GetBalance(ctx, req.(*wrapperspb.UInt64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func createAccountHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccountServiceServer).CreateAccount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodCreateAccount}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccountServiceServer).CreateAccount(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
