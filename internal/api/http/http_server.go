package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/olyamironova/escrow-engine/internal/api/dto"
	"github.com/olyamironova/escrow-engine/internal/core"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/metrics"
	"github.com/olyamironova/escrow-engine/internal/middleware"
	"go.uber.org/zap"
)

type Options struct {
	CORSOrigin     string
	RateLimitRPS   float64
	RateLimitBurst int
}

// HTTPServer exposes the engine as a JSON API under /api/v1.
type HTTPServer struct {
	eng    *core.Engine
	log    *zap.Logger
	router *gin.Engine
	srv    *http.Server
}

func NewHTTPServer(eng *core.Engine, tokens middleware.TokenVerifier, log *zap.Logger, opts Options) *HTTPServer {
	s := &HTTPServer{eng: eng, log: log.Named("http")}

	r := gin.New()
	r.Use(middleware.RequestLogger(s.log), gin.Recovery(), middleware.Metrics(), middleware.CORS(opts.CORSOrigin))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	rl := middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst)
	api := r.Group("/api/v1", middleware.Auth(tokens, s.log), rl.Middleware())

	api.POST("/accounts", s.openAccount)
	api.GET("/accounts/me", s.getMyAccount)
	api.POST("/accounts/me/withdraw", s.withdraw)

	api.POST("/offers", s.createOffer)
	api.GET("/offers", s.offerBook)
	api.GET("/offers/mine", s.listMyOffers)
	api.GET("/offers/:id", s.getOffer)
	api.POST("/offers/:id/cancel", s.cancelOffer)
	api.POST("/offers/:id/trades", s.createTrade)

	api.GET("/trades", s.listTrades)
	api.GET("/trades/:id", s.getTrade)
	api.POST("/trades/:id/paid", s.markPaid)
	api.POST("/trades/:id/confirm", s.confirm)
	api.POST("/trades/:id/cancel", s.cancelTrade)
	api.POST("/trades/:id/dispute", s.openDispute)
	api.GET("/trades/:id/messages", s.listMessages)
	api.POST("/trades/:id/messages", s.postMessage)

	api.GET("/disputes/:id", s.getDispute)
	api.POST("/disputes/:id/evidence", s.attachEvidence)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.GET("/disputes", s.listDisputes)
	admin.POST("/disputes/:id/resolve", s.resolveDispute)
	admin.GET("/accounts/:id", s.getAccount)
	admin.POST("/accounts/:id/deposit", s.deposit)
	admin.POST("/accounts/:id/block", s.block)
	admin.POST("/accounts/:id/unblock", s.unblock)
	admin.POST("/accounts/:id/verify", s.verify)

	s.router = r
	s.srv = &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *HTTPServer) Handler() http.Handler { return s.router }

// Run serves until Shutdown is called.
func (s *HTTPServer) Run(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.log.Info("listening", zap.String("addr", lis.Addr().String()))
	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// --- Helpers ---

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	case domain.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) fail(c *gin.Context, err error) {
	status := statusFor(domain.KindOf(err))
	if status == http.StatusInternalServerError {
		s.log.Error("internal_error", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, dto.Error(err))
}

func (s *HTTPServer) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: dto.ErrorBody{Kind: string(domain.KindValidation), Message: msg}})
}

func caller(c *gin.Context) domain.Caller {
	cl, _ := middleware.CallerOf(c)
	return cl
}

func ctx(c *gin.Context) context.Context { return c.Request.Context() }

func parseLimit(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// --- Accounts ---

func (s *HTTPServer) openAccount(c *gin.Context) {
	if _, err := s.eng.OpenAccount(ctx(c), caller(c)); err != nil {
		s.fail(c, err)
		return
	}
	sum, err := s.eng.GetAccount(ctx(c), caller(c), caller(c).AccountID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromAccount(sum))
}

func (s *HTTPServer) getMyAccount(c *gin.Context) {
	sum, err := s.eng.GetAccount(ctx(c), caller(c), caller(c).AccountID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromAccount(sum))
}

func (s *HTTPServer) getAccount(c *gin.Context) {
	sum, err := s.eng.GetAccount(ctx(c), caller(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromAccount(sum))
}

func (s *HTTPServer) withdraw(c *gin.Context) {
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	b, err := s.eng.Withdraw(ctx(c), caller(c), req.Currency, req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromBalance(b))
}

func (s *HTTPServer) deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	b, err := s.eng.Deposit(ctx(c), caller(c), c.Param("id"), req.Currency, req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromBalance(b))
}

func (s *HTTPServer) block(c *gin.Context) {
	var req dto.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	if req.Until.IsZero() {
		s.badRequest(c, "until is required")
		return
	}
	s.setBlocked(c, req.Until)
}

func (s *HTTPServer) unblock(c *gin.Context) { s.setBlocked(c, time.Time{}) }

func (s *HTTPServer) setBlocked(c *gin.Context, until time.Time) {
	a, err := s.eng.SetBlocked(ctx(c), caller(c), c.Param("id"), until)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromAccount(&domain.AccountSummary{Account: a}))
}

func (s *HTTPServer) verify(c *gin.Context) {
	var req dto.VerifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.badRequest(c, err.Error())
			return
		}
	}
	verified := req.Verified == nil || *req.Verified
	a, err := s.eng.SetVerified(ctx(c), caller(c), c.Param("id"), verified)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromAccount(&domain.AccountSummary{Account: a}))
}

// --- Offers ---

func (s *HTTPServer) createOffer(c *gin.Context) {
	var req dto.CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	o, err := s.eng.CreateOffer(ctx(c), caller(c), core.OfferRequest{
		Side:          domain.Side(req.Side),
		Asset:         req.Asset,
		Fiat:          req.Fiat,
		Price:         req.Price,
		Amount:        req.Amount,
		MinLimit:      req.MinLimit,
		MaxLimit:      req.MaxLimit,
		PaymentMethod: req.PaymentMethod,
		Contact:       req.Contact,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromOffer(o))
}

func (s *HTTPServer) offerBook(c *gin.Context) {
	asset, fiat := strings.TrimSpace(c.Query("asset")), strings.TrimSpace(c.Query("fiat"))
	if asset == "" || fiat == "" {
		s.badRequest(c, "asset and fiat query parameters are required")
		return
	}
	ob, err := s.eng.OfferBook(ctx(c), asset, fiat)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOfferBook(ob))
}

func (s *HTTPServer) listMyOffers(c *gin.Context) {
	status := domain.OfferStatus(strings.ToUpper(c.Query("status")))
	offers, err := s.eng.ListMyOffers(ctx(c), caller(c), status)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOffers(offers))
}

func (s *HTTPServer) getOffer(c *gin.Context) {
	o, err := s.eng.GetOffer(ctx(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOffer(o))
}

func (s *HTTPServer) cancelOffer(c *gin.Context) {
	o, err := s.eng.CancelOffer(ctx(c), caller(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOffer(o))
}

// --- Trades ---

func (s *HTTPServer) createTrade(c *gin.Context) {
	var req dto.CreateTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	t, err := s.eng.CreateTrade(ctx(c), caller(c), c.Param("id"), req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromTrade(t))
}

func (s *HTTPServer) listTrades(c *gin.Context) {
	var req dto.ListTradesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	status := domain.TradeStatus(strings.ToUpper(req.Status))
	if status != "" && !status.Valid() {
		s.badRequest(c, "unknown trade status "+req.Status)
		return
	}
	trades, err := s.eng.ListTrades(ctx(c), caller(c), domain.TradeFilter{
		AccountID: req.AccountID,
		Status:    status,
		Limit:     req.Limit,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTrades(trades))
}

func (s *HTTPServer) getTrade(c *gin.Context) {
	s.tradeOp(c, s.eng.GetTrade)
}

func (s *HTTPServer) markPaid(c *gin.Context) {
	s.tradeOp(c, s.eng.MarkPaid)
}

func (s *HTTPServer) confirm(c *gin.Context) {
	s.tradeOp(c, s.eng.ConfirmCompletion)
}

func (s *HTTPServer) cancelTrade(c *gin.Context) {
	s.tradeOp(c, s.eng.CancelTrade)
}

func (s *HTTPServer) tradeOp(c *gin.Context, op func(context.Context, domain.Caller, string) (*domain.Trade, error)) {
	t, err := op(ctx(c), caller(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromTrade(t))
}

// --- Disputes ---

func (s *HTTPServer) openDispute(c *gin.Context) {
	var req dto.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	t, d, err := s.eng.OpenDispute(ctx(c), caller(c), c.Param("id"), req.Reason, req.Evidence)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.TradeDispute{Trade: dto.FromTrade(t), Dispute: dto.FromDispute(d)})
}

func (s *HTTPServer) getDispute(c *gin.Context) {
	d, err := s.eng.GetDispute(ctx(c), caller(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromDispute(d))
}

func (s *HTTPServer) attachEvidence(c *gin.Context) {
	var req dto.EvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	d, err := s.eng.AttachEvidence(ctx(c), caller(c), c.Param("id"), req.Handles)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromDispute(d))
}

func (s *HTTPServer) listDisputes(c *gin.Context) {
	ds, err := s.eng.ListDisputes(ctx(c), caller(c), domain.DisputeFilter{
		TradeID: c.Query("trade_id"),
		Status:  domain.DisputeStatus(strings.ToUpper(c.Query("status"))),
		Limit:   parseLimit(c.Query("limit")),
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromDisputes(ds))
}

func (s *HTTPServer) resolveDispute(c *gin.Context) {
	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	outcome := domain.DisputeOutcome(strings.ToUpper(req.Outcome))
	t, d, err := s.eng.ResolveDispute(ctx(c), caller(c), c.Param("id"), outcome)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.TradeDispute{Trade: dto.FromTrade(t), Dispute: dto.FromDispute(d)})
}

// --- Chat ---

func (s *HTTPServer) postMessage(c *gin.Context) {
	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err.Error())
		return
	}
	m, err := s.eng.PostMessage(ctx(c), caller(c), c.Param("id"), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.FromMessage(m))
}

func (s *HTTPServer) listMessages(c *gin.Context) {
	var after int64
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.badRequest(c, "after must be an integer cursor")
			return
		}
		after = n
	}
	ms, err := s.eng.ListMessages(ctx(c), caller(c), c.Param("id"), after, parseLimit(c.Query("limit")))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromMessages(ms, after))
}
