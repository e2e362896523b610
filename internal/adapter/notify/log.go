package notify

import (
	"context"

	"github.com/olyamironova/escrow-engine/internal/domain"
	"go.uber.org/zap"
)

// LogPublisher records events in the service log; used when no broker is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log.Named("events")}
}

func (p *LogPublisher) Notify(_ context.Context, ev domain.Event) error {
	p.log.Info(string(ev.Type),
		zap.String("id", ev.ID),
		zap.String("trade", ev.TradeID),
		zap.String("offer", ev.OfferID),
		zap.String("dispute", ev.DisputeID),
		zap.String("actor", ev.Actor),
		zap.Strings("recipients", ev.Recipients),
		zap.String("status", ev.Status),
		zap.String("amount", ev.Amount.String()),
		zap.String("currency", ev.Currency),
	)
	return nil
}
