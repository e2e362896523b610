package grpc

import (
	"context"

	"github.com/olyamironova/escrow-engine/internal/api/dto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls the Escrow service using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// WithToken attaches a session token to outgoing calls made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTrade(ctx context.Context, in *dto.CreateTradeRequest, opts ...grpc.CallOption) (*dto.Trade, error) {
	return invoke[dto.Trade](ctx, c.cc, "CreateTrade", in, opts...)
}

func (c *Client) MarkPaid(ctx context.Context, in *dto.TradeRequest, opts ...grpc.CallOption) (*dto.Trade, error) {
	return invoke[dto.Trade](ctx, c.cc, "MarkPaid", in, opts...)
}

func (c *Client) ConfirmCompletion(ctx context.Context, in *dto.TradeRequest, opts ...grpc.CallOption) (*dto.Trade, error) {
	return invoke[dto.Trade](ctx, c.cc, "ConfirmCompletion", in, opts...)
}

func (c *Client) CancelTrade(ctx context.Context, in *dto.TradeRequest, opts ...grpc.CallOption) (*dto.Trade, error) {
	return invoke[dto.Trade](ctx, c.cc, "CancelTrade", in, opts...)
}

func (c *Client) OpenDispute(ctx context.Context, in *dto.OpenDisputeRequest, opts ...grpc.CallOption) (*dto.TradeDispute, error) {
	return invoke[dto.TradeDispute](ctx, c.cc, "OpenDispute", in, opts...)
}

func (c *Client) ResolveDispute(ctx context.Context, in *dto.ResolveDisputeRequest, opts ...grpc.CallOption) (*dto.TradeDispute, error) {
	return invoke[dto.TradeDispute](ctx, c.cc, "ResolveDispute", in, opts...)
}

func (c *Client) GetTrade(ctx context.Context, in *dto.TradeRequest, opts ...grpc.CallOption) (*dto.Trade, error) {
	return invoke[dto.Trade](ctx, c.cc, "GetTrade", in, opts...)
}

func (c *Client) ListTrades(ctx context.Context, in *dto.ListTradesRequest, opts ...grpc.CallOption) (*dto.Trades, error) {
	return invoke[dto.Trades](ctx, c.cc, "ListTrades", in, opts...)
}
