package grpc

import (
	"context"
	"net"
	"strings"

	"github.com/olyamironova/escrow-engine/internal/api/dto"
	"github.com/olyamironova/escrow-engine/internal/auth"
	"github.com/olyamironova/escrow-engine/internal/core"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCServer struct {
	Eng    *core.Engine
	log    *zap.Logger
	server *grpc.Server
	health *health.Server
}

func NewGRPCServer(eng *core.Engine, tokens middleware.TokenVerifier, log *zap.Logger) *GRPCServer {
	s := &GRPCServer{Eng: eng, log: log.Named("grpc"), health: health.NewServer()}
	s.server = grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.logInterceptor,
		authInterceptor(tokens),
	))
	RegisterEscrowServer(s.server, s)
	healthpb.RegisterHealthServer(s.server, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	s.log.Info("listening", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

// Stop marks the service not serving and drains in-flight calls.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

func authInterceptor(tokens middleware.TokenVerifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		var token string
		if v := md.Get("authorization"); len(v) > 0 {
			scheme, rest, ok := strings.Cut(v[0], " ")
			if ok && strings.EqualFold(scheme, "Bearer") {
				token = strings.TrimSpace(rest)
			}
		}
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		caller, err := tokens.Verify(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid session token")
		}
		return handler(auth.WithCaller(ctx, caller), req)
	}
}

func (s *GRPCServer) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if code := status.Code(err); code == codes.Internal || code == codes.Unknown {
		s.log.Error("rpc failed", zap.String("method", info.FullMethod), zap.Error(err))
	}
	return resp, err
}

// toStatus maps engine error kinds onto gRPC codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	body := dto.Error(err).Error
	var code codes.Code
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		code = codes.NotFound
	case domain.KindInvalidState, domain.KindInsufficientFunds:
		code = codes.FailedPrecondition
	case domain.KindUnauthorized:
		code = codes.PermissionDenied
	case domain.KindConflict:
		code = codes.Aborted
	case domain.KindValidation:
		code = codes.InvalidArgument
	default:
		code = codes.Internal
	}
	return status.Error(code, body.Kind+": "+body.Message)
}

func callerFrom(ctx context.Context) domain.Caller {
	c, _ := auth.CallerFrom(ctx)
	return c
}

func (s *GRPCServer) tradeOp(ctx context.Context, op func(context.Context, domain.Caller, string) (*domain.Trade, error), id string) (*dto.Trade, error) {
	t, err := op(ctx, callerFrom(ctx), id)
	if err != nil {
		return nil, toStatus(err)
	}
	out := dto.FromTrade(t)
	return &out, nil
}

func (s *GRPCServer) CreateTrade(ctx context.Context, req *dto.CreateTradeRequest) (*dto.Trade, error) {
	if req.OfferID == "" {
		return nil, status.Error(codes.InvalidArgument, "offer_id is required")
	}
	t, err := s.Eng.CreateTrade(ctx, callerFrom(ctx), req.OfferID, req.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	out := dto.FromTrade(t)
	return &out, nil
}

func (s *GRPCServer) MarkPaid(ctx context.Context, req *dto.TradeRequest) (*dto.Trade, error) {
	return s.tradeOp(ctx, s.Eng.MarkPaid, req.TradeID)
}

func (s *GRPCServer) ConfirmCompletion(ctx context.Context, req *dto.TradeRequest) (*dto.Trade, error) {
	return s.tradeOp(ctx, s.Eng.ConfirmCompletion, req.TradeID)
}

func (s *GRPCServer) CancelTrade(ctx context.Context, req *dto.TradeRequest) (*dto.Trade, error) {
	return s.tradeOp(ctx, s.Eng.CancelTrade, req.TradeID)
}

func (s *GRPCServer) GetTrade(ctx context.Context, req *dto.TradeRequest) (*dto.Trade, error) {
	return s.tradeOp(ctx, s.Eng.GetTrade, req.TradeID)
}

func (s *GRPCServer) OpenDispute(ctx context.Context, req *dto.OpenDisputeRequest) (*dto.TradeDispute, error) {
	t, d, err := s.Eng.OpenDispute(ctx, callerFrom(ctx), req.TradeID, req.Reason, req.Evidence)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dto.TradeDispute{Trade: dto.FromTrade(t), Dispute: dto.FromDispute(d)}, nil
}

func (s *GRPCServer) ResolveDispute(ctx context.Context, req *dto.ResolveDisputeRequest) (*dto.TradeDispute, error) {
	outcome := domain.DisputeOutcome(strings.ToUpper(req.Outcome))
	t, d, err := s.Eng.ResolveDispute(ctx, callerFrom(ctx), req.DisputeID, outcome)
	if err != nil {
		return nil, toStatus(err)
	}
	return &dto.TradeDispute{Trade: dto.FromTrade(t), Dispute: dto.FromDispute(d)}, nil
}

func (s *GRPCServer) ListTrades(ctx context.Context, req *dto.ListTradesRequest) (*dto.Trades, error) {
	st := domain.TradeStatus(strings.ToUpper(req.Status))
	if st != "" && !st.Valid() {
		return nil, status.Errorf(codes.InvalidArgument, "unknown trade status %q", req.Status)
	}
	ts, err := s.Eng.ListTrades(ctx, callerFrom(ctx), domain.TradeFilter{
		AccountID: req.AccountID,
		Status:    st,
		Limit:     req.Limit,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	out := dto.FromTrades(ts)
	return &out, nil
}
