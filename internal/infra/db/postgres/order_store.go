package postgres

import (
	"context"
	"errors"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"payment-reconciliation-engine/internal/domain"
	"payment-reconciliation-engine/internal/domain/model"
	"payment-reconciliation-engine/internal/domain/ports/adapter"
	"payment-reconciliation-engine/internal/domain/ports/store"
	"payment-reconciliation-engine/internal/infra/metrics"
)

var _ store.OrderStore = (*orderStore)(nil)

// orderStore is the reference authoritative order backend. Per-order
// concurrency control is a row lock plus an advisory xact lock on the ref, so
// at most one attempt mutation runs per order at a time.
type orderStore struct {
	pool      *pgxpool.Pool
	driver    adapter.GatewayDriver
	paramsTTL time.Duration
	log       *zerolog.Logger
}

func NewOrderStore(pool *pgxpool.Pool, driver adapter.GatewayDriver, paramsTTL time.Duration, logger *zerolog.Logger) *orderStore {
	if paramsTTL <= 0 {
		paramsTTL = 2 * time.Minute
	}
	return &orderStore{pool: pool, driver: driver, paramsTTL: paramsTTL, log: logger}
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

const orderColumns = `ref, account_id, kind, instrument, requested_amount, discount, currency, status,
  authority, params_payload, params_expires_at, created_at, updated_at, expires_at, settled_at, ref_id, description`

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	var authority *string
	var payload []byte
	var paramsExp *time.Time
	if err := row.Scan(&o.Ref, &o.AccountID, &o.Kind, &o.Instrument, &o.RequestedAmount, &o.Discount,
		&o.Currency, &o.Status, &authority, &payload, &paramsExp, &o.CreatedAt, &o.UpdatedAt,
		&o.ExpiresAt, &o.SettledAt, &o.RefID, &o.Description); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadRow
	}
	if authority != nil && paramsExp != nil {
		o.Params = &model.GatewayParams{Authority: *authority, Payload: payload, ExpiresAt: *paramsExp}
	}
	return o, nil
}

func (s *orderStore) CreateOrder(ctx context.Context, in store.CreateOrderInput) (*model.Order, error) {
	if in.Amount < 0 || in.Discount < 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	o := &model.Order{
		Ref:             uuid.NewString(),
		AccountID:       in.AccountID,
		Kind:            in.Kind,
		Instrument:      in.Instrument,
		RequestedAmount: in.Amount,
		Discount:        in.Discount,
		Currency:        in.Currency,
		Status:          model.OrderStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		ExpiresAt:       now.Add(in.TTL),
		Description:     in.Description,
	}
	const q = `INSERT INTO orders (ref, account_id, kind, instrument, requested_amount, discount, currency, status, created_at, updated_at, expires_at, description)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	_, err := s.pool.Exec(ctx, q, o.Ref, o.AccountID, o.Kind, o.Instrument, o.RequestedAmount, o.Discount,
		o.Currency, o.Status, o.CreatedAt, o.UpdatedAt, o.ExpiresAt, o.Description)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	metrics.IncOrderStatus(string(o.Status))
	return o, nil
}

// withOrderTx runs fn on the row-locked order inside a transaction guarded by
// an advisory xact lock on the ref.
func (s *orderStore) withOrderTx(ctx context.Context, ref string, fn func(tx pgx.Tx, o *model.Order) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.ErrOperationFailed
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(ref)); err != nil {
		return domain.ErrOperationFailed
	}
	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE ref=$1 FOR UPDATE`, ref)
	o, err := scanOrder(row)
	if err != nil {
		return err
	}
	if err := fn(tx, o); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *orderStore) updateStatus(ctx context.Context, tx pgx.Tx, ref string, status model.OrderStatus, refID *string, settledAt *time.Time) error {
	const q = `UPDATE orders SET status=$2, ref_id=COALESCE($3, ref_id), settled_at=COALESCE($4, settled_at), updated_at=NOW() WHERE ref=$1;`
	if _, err := tx.Exec(ctx, q, ref, status, refID, settledAt); err != nil {
		return domain.ErrOperationFailed
	}
	metrics.IncOrderStatus(string(status))
	return nil
}

func (s *orderStore) saveParams(ctx context.Context, tx pgx.Tx, ref string, p *model.GatewayParams) error {
	const q = `UPDATE orders SET status=$2, authority=$3, params_payload=$4, params_expires_at=$5, updated_at=NOW() WHERE ref=$1;`
	_, err := tx.Exec(ctx, q, ref, model.OrderStatusAwaitingConfirmation, p.Authority, p.Payload, p.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return s.conflictFor(ctx, ref)
		}
		return domain.ErrOperationFailed
	}
	metrics.IncOrderStatus(string(model.OrderStatusAwaitingConfirmation))
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// conflictFor resolves which active order blocked ref so the caller can be
// redirected to it.
func (s *orderStore) conflictFor(ctx context.Context, ref string) error {
	const q = `SELECT b.ref FROM orders a
JOIN orders b ON b.account_id = a.account_id AND b.kind = a.kind AND b.ref <> a.ref
WHERE a.ref = $1 AND b.status IN ('awaiting_confirmation','processing')
LIMIT 1;`
	var other string
	if err := s.pool.QueryRow(ctx, q, ref).Scan(&other); err != nil {
		return domain.ErrOperationFailed
	}
	return &domain.ConflictError{Ref: other}
}

func (s *orderStore) InitiateAttempt(ctx context.Context, ref string, instrument model.Instrument, discountRef string) (*model.GatewayParams, error) {
	var params *model.GatewayParams
	err := s.withOrderTx(ctx, ref, func(tx pgx.Tx, o *model.Order) error {
		if o.Status != model.OrderStatusPending {
			return domain.ErrInvalidState
		}
		if o.Expired(time.Now()) {
			return domain.ErrExpired
		}
		if discountRef != "" {
			if _, err := tx.Exec(ctx, `UPDATE orders SET discount_ref=$2 WHERE ref=$1`, ref, discountRef); err != nil {
				return domain.ErrOperationFailed
			}
		}
		if instrument == model.InstrumentWallet {
			// Wallet settlement is synchronous and terminal; it never enters
			// the asynchronous path.
			now := time.Now()
			return s.updateStatus(ctx, tx, ref, model.OrderStatusSucceeded, nil, &now)
		}
		return s.placeHold(ctx, tx, o, &params)
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

// placeHold requests a fresh hold from the gateway and stores its params.
func (s *orderStore) placeHold(ctx context.Context, tx pgx.Tx, o *model.Order, out **model.GatewayParams) error {
	authority, payload, err := s.driver.RequestHold(ctx, o.SettledAmount(), o.Currency, o.Description)
	if err != nil {
		s.log.Warn().Str("order_ref", o.Ref).Err(err).Msg("gateway hold request failed")
		return domain.ErrOperationFailed
	}
	p := &model.GatewayParams{
		Authority: authority,
		Payload:   payload,
		ExpiresAt: time.Now().Add(s.paramsTTL),
	}
	if err := s.saveParams(ctx, tx, o.Ref, p); err != nil {
		return err
	}
	*out = p
	return nil
}

func (s *orderStore) ContinueAttempt(ctx context.Context, ref string) (*model.GatewayParams, error) {
	var params *model.GatewayParams
	err := s.withOrderTx(ctx, ref, func(tx pgx.Tx, o *model.Order) error {
		switch o.Status {
		case model.OrderStatusAwaitingConfirmation, model.OrderStatusProcessing:
		default:
			return domain.ErrInvalidState
		}
		if o.Expired(time.Now()) {
			return domain.ErrExpired
		}
		if o.Params.Valid(time.Now()) {
			// Idempotent resume: the saved hold is returned unchanged, no new
			// backend side effect.
			params = o.Params
			return nil
		}
		// Stale params: abandon the old hold and place a fresh one. The
		// active-hold index keeps this from ever double-charging.
		if o.Params != nil {
			if err := s.driver.ReleaseHold(ctx, o.Params.Authority); err != nil {
				s.log.Warn().Str("order_ref", ref).Err(err).Msg("stale hold release failed")
			}
		}
		return s.placeHold(ctx, tx, o, &params)
	})
	if err != nil {
		return nil, err
	}
	return params, nil
}

func (s *orderStore) CancelAttempt(ctx context.Context, ref string) error {
	return s.withOrderTx(ctx, ref, func(tx pgx.Tx, o *model.Order) error {
		if o.Status.Terminal() {
			return domain.ErrTooLate
		}
		if o.Status == model.OrderStatusPending {
			return nil // nothing outstanding
		}
		if o.Params != nil {
			// The gateway may have settled since our last look; never fake a
			// cancellation over a terminal server-side state.
			settled, declined, refID, err := s.driver.QuerySettlement(ctx, o.Params.Authority, o.SettledAmount())
			if err == nil {
				now := time.Now()
				if settled {
					if uerr := s.updateStatus(ctx, tx, ref, model.OrderStatusSucceeded, &refID, &now); uerr != nil {
						return uerr
					}
					return domain.ErrTooLate
				}
				if declined {
					if uerr := s.updateStatus(ctx, tx, ref, model.OrderStatusFailed, nil, nil); uerr != nil {
						return uerr
					}
					return domain.ErrTooLate
				}
			}
			if err := s.driver.ReleaseHold(ctx, o.Params.Authority); err != nil {
				s.log.Warn().Str("order_ref", ref).Err(err).Msg("hold release failed")
			}
		}
		const q = `UPDATE orders SET status=$2, authority=NULL, params_payload=NULL, params_expires_at=NULL, updated_at=NOW() WHERE ref=$1;`
		if _, err := tx.Exec(ctx, q, ref, model.OrderStatusPending); err != nil {
			return domain.ErrOperationFailed
		}
		metrics.IncOrderStatus(string(model.OrderStatusPending))
		return nil
	})
}

func (s *orderStore) GetStatus(ctx context.Context, ref string) (*model.StatusSnapshot, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE ref=$1`, ref)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	snap := &model.StatusSnapshot{Ref: o.Ref, Status: o.Status}
	if o.Status == model.OrderStatusSucceeded {
		snap.SettledAmount = o.SettledAmount()
	}
	return snap, nil
}

func (s *orderStore) ForceRefresh(ctx context.Context, ref string) (model.OrderStatus, error) {
	var status model.OrderStatus
	err := s.withOrderTx(ctx, ref, func(tx pgx.Tx, o *model.Order) error {
		status = o.Status
		if o.Status.Terminal() || o.Params == nil {
			metrics.IncGatewayRefresh("noop")
			return nil
		}
		settled, declined, refID, err := s.driver.QuerySettlement(ctx, o.Params.Authority, o.SettledAmount())
		if err != nil {
			metrics.IncGatewayRefresh("error")
			// The caller treats this as a transient miss; the cached status
			// still answers.
			return nil
		}
		now := time.Now()
		switch {
		case settled:
			metrics.IncGatewayRefresh("settled")
			status = model.OrderStatusSucceeded
			return s.updateStatus(ctx, tx, ref, status, &refID, &now)
		case declined:
			metrics.IncGatewayRefresh("declined")
			status = model.OrderStatusFailed
			return s.updateStatus(ctx, tx, ref, status, nil, nil)
		default:
			metrics.IncGatewayRefresh("pending")
			return nil
		}
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

func (s *orderStore) FindOrder(ctx context.Context, ref string) (*model.Order, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE ref=$1`, ref)
	return scanOrder(row)
}

func (s *orderStore) ListUnsettledOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	const q = `SELECT ref FROM orders
WHERE status IN ('awaiting_confirmation','processing') AND updated_at < $1
ORDER BY updated_at ASC
LIMIT $2;`
	rows, err := s.pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, domain.ErrReadRow
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}
