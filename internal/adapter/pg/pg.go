package pg

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/olyamironova/escrow-engine/internal/domain"
	"github.com/olyamironova/escrow-engine/internal/port"
)

var _ port.Repository = (*PgRepo)(nil)

type PgRepo struct {
	pool *pgxpool.Pool
}

// call Close when finish to work with database.
func NewPgRepo(ctx context.Context, dsn string) (*PgRepo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &PgRepo{pool: pool}, nil
}

func (p *PgRepo) Close(ctx context.Context) {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PgRepo) BeginTx(ctx context.Context) (port.Tx, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("pg: begin: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (p *PgRepo) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	a, err := scanAccount(p.pool.QueryRow(ctx, `SELECT `+accountCols+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "account", id)
	}
	return a, nil
}

func (p *PgRepo) ListBalances(ctx context.Context, accountID string) ([]*domain.Balance, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+balanceCols+` FROM balances WHERE account_id = $1 ORDER BY currency`, accountID)
	if err != nil {
		return nil, mapErr(err, "balances", accountID)
	}
	return collect(rows, scanBalance)
}

func (p *PgRepo) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	o, err := scanOffer(p.pool.QueryRow(ctx, `SELECT `+offerCols+` FROM offers WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "offer", id)
	}
	return o, nil
}

func (p *PgRepo) ListOffers(ctx context.Context, f domain.OfferFilter) ([]*domain.Offer, error) {
	var w where
	w.eq("owner_id", f.OwnerID)
	w.eq("asset", f.Asset)
	w.eq("fiat", f.Fiat)
	w.eq("status", string(f.Status))
	rows, err := p.pool.Query(ctx, `SELECT `+offerCols+` FROM offers`+w.sql()+` ORDER BY created_at DESC`, w.args...)
	if err != nil {
		return nil, mapErr(err, "offers", "")
	}
	return collect(rows, scanOffer)
}

func (p *PgRepo) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	t, err := scanTrade(p.pool.QueryRow(ctx, `SELECT `+tradeCols+` FROM trades WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "trade", id)
	}
	return t, nil
}

func (p *PgRepo) ListTrades(ctx context.Context, f domain.TradeFilter) ([]*domain.Trade, error) {
	var w where
	if f.AccountID != "" {
		w.args = append(w.args, f.AccountID)
		n := len(w.args)
		w.conds = append(w.conds, fmt.Sprintf("(buyer_id = $%d OR seller_id = $%d)", n, n))
	}
	w.eq("status", string(f.Status))
	q := `SELECT ` + tradeCols + ` FROM trades` + w.sql() + ` ORDER BY created_at DESC` + w.limit(f.Limit)
	rows, err := p.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, mapErr(err, "trades", "")
	}
	return collect(rows, scanTrade)
}

func (p *PgRepo) ListStaleTrades(ctx context.Context, status domain.TradeStatus, cutoff time.Time, limit int) ([]*domain.Trade, error) {
	var w where
	w.eq("status", string(status))
	w.args = append(w.args, cutoff)
	w.conds = append(w.conds, fmt.Sprintf("created_at < $%d", len(w.args)))
	q := `SELECT ` + tradeCols + ` FROM trades` + w.sql() + ` ORDER BY created_at ASC` + w.limit(limit)
	rows, err := p.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, mapErr(err, "stale trades", "")
	}
	return collect(rows, scanTrade)
}

func (p *PgRepo) GetDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	d, err := scanDispute(p.pool.QueryRow(ctx, `SELECT `+disputeCols+` FROM disputes WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "dispute", id)
	}
	return d, nil
}

func (p *PgRepo) ListDisputes(ctx context.Context, f domain.DisputeFilter) ([]*domain.Dispute, error) {
	var w where
	w.eq("trade_id", f.TradeID)
	w.eq("status", string(f.Status))
	q := `SELECT ` + disputeCols + ` FROM disputes` + w.sql() + ` ORDER BY created_at ASC` + w.limit(f.Limit)
	rows, err := p.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, mapErr(err, "disputes", "")
	}
	return collect(rows, scanDispute)
}

func (p *PgRepo) AppendMessage(ctx context.Context, m *domain.ChatMessage) error {
	err := p.pool.QueryRow(ctx, `
INSERT INTO messages(id, trade_id, sender_id, body, created_at)
VALUES($1,$2,$3,$4,$5)
RETURNING seq
`, m.ID, m.TradeID, m.SenderID, m.Text, m.CreatedAt).Scan(&m.Seq)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.NotFound("trade %s not found", m.TradeID)
		}
		return mapErr(err, "message", m.ID)
	}
	return nil
}

func (p *PgRepo) ListMessages(ctx context.Context, tradeID string, afterSeq int64, limit int) ([]*domain.ChatMessage, error) {
	var w where
	w.eq("trade_id", tradeID)
	w.args = append(w.args, afterSeq)
	w.conds = append(w.conds, fmt.Sprintf("seq > $%d", len(w.args)))
	q := `SELECT seq, id, trade_id, sender_id, body, created_at FROM messages` + w.sql() + ` ORDER BY seq ASC` + w.limit(limit)
	rows, err := p.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, mapErr(err, "messages", tradeID)
	}
	return collect(rows, func(r rowScanner) (*domain.ChatMessage, error) {
		var m domain.ChatMessage
		if err := r.Scan(&m.Seq, &m.ID, &m.TradeID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		return &m, nil
	})
}

// where accumulates equality filters, skipping empty values.
type where struct {
	conds []string
	args  []any
}

func (w *where) eq(col, val string) {
	if val == "" {
		return
	}
	w.args = append(w.args, val)
	w.conds = append(w.conds, fmt.Sprintf("%s = $%d", col, len(w.args)))
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) limit(n int) string {
	if n <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", n)
}

func collect[T any](rows pgx.Rows, scan func(rowScanner) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var res []*T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("pg: scan: %w", err)
		}
		res = append(res, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "rows", "")
	}
	return res, nil
}
