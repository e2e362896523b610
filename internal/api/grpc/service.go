package grpc

import (
	"context"

	"github.com/olyamironova/escrow-engine/internal/api/dto"
	"google.golang.org/grpc"
)

const ServiceName = "escrow.v1.Escrow"

// EscrowServer is the trade lifecycle surface exposed over gRPC.
type EscrowServer interface {
	CreateTrade(context.Context, *dto.CreateTradeRequest) (*dto.Trade, error)
	MarkPaid(context.Context, *dto.TradeRequest) (*dto.Trade, error)
	ConfirmCompletion(context.Context, *dto.TradeRequest) (*dto.Trade, error)
	CancelTrade(context.Context, *dto.TradeRequest) (*dto.Trade, error)
	OpenDispute(context.Context, *dto.OpenDisputeRequest) (*dto.TradeDispute, error)
	ResolveDispute(context.Context, *dto.ResolveDisputeRequest) (*dto.TradeDispute, error)
	GetTrade(context.Context, *dto.TradeRequest) (*dto.Trade, error)
	ListTrades(context.Context, *dto.ListTradesRequest) (*dto.Trades, error)
}

func RegisterEscrowServer(s grpc.ServiceRegistrar, srv EscrowServer) {
	s.RegisterService(&EscrowServiceDesc, srv)
}

// unary adapts a typed method to a grpc.MethodHandler.
func unary[Req any, Resp any](method string, call func(EscrowServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EscrowServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EscrowServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var EscrowServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EscrowServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateTrade", Handler: unary("CreateTrade", EscrowServer.CreateTrade)},
		{MethodName: "MarkPaid", Handler: unary("MarkPaid", EscrowServer.MarkPaid)},
		{MethodName: "ConfirmCompletion", Handler: unary("ConfirmCompletion", EscrowServer.ConfirmCompletion)},
		{MethodName: "CancelTrade", Handler: unary("CancelTrade", EscrowServer.CancelTrade)},
		{MethodName: "OpenDispute", Handler: unary("OpenDispute", EscrowServer.OpenDispute)},
		{MethodName: "ResolveDispute", Handler: unary("ResolveDispute", EscrowServer.ResolveDispute)},
		{MethodName: "GetTrade", Handler: unary("GetTrade", EscrowServer.GetTrade)},
		{MethodName: "ListTrades", Handler: unary("ListTrades", EscrowServer.ListTrades)},
	},
	Streams: []grpc.StreamDesc{},
}
