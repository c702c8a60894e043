// Package app implements the tipping ledger: tips are appended pending,
// handed to the payment gateway through an async boundary with a bounded
// timeout, and settled exactly once to completed or failed by the gateway's
// callback. The caller of SendTip always gets the pending record back
// immediately; completion surfaces through the event stream or a later read.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/platemate/order-ledger/internal/ledger/domain"
	"github.com/platemate/order-ledger/internal/notify"
	orderdomain "github.com/platemate/order-ledger/internal/order/domain"
	"github.com/platemate/order-ledger/internal/payment"
	"github.com/platemate/order-ledger/internal/pkg/syncx"
)

// Repository is the port for tip persistence. The store is append-only:
// Append adds a pending transaction and Settle flips it to completed or
// failed exactly once; nothing is ever deleted.
type Repository interface {
	Append(ctx context.Context, t *domain.TipTransaction) error
	Get(ctx context.Context, id string) (*domain.TipTransaction, error)
	// Settle moves a pending transaction to the given terminal status.
	// It fails with domain.ErrAlreadySettled if the transaction is no
	// longer pending, and with domain.ErrInvalidTip if completing it would
	// record a second completed tip for the same (order, recipient type).
	Settle(ctx context.Context, id string, status domain.TipStatus, reference string, settledAt time.Time) (*domain.TipTransaction, error)
	HasCompleted(ctx context.Context, orderID string, rt domain.RecipientType) (bool, error)
	ListByRecipient(ctx context.Context, userID string, status domain.TipStatus) ([]*domain.TipTransaction, error)
	ListBySender(ctx context.Context, userID string, status domain.TipStatus) ([]*domain.TipTransaction, error)
	// SumCompletedByRecipient totals completed tips created at or after
	// since; a zero since places no lower bound.
	SumCompletedByRecipient(ctx context.Context, userID string, since time.Time) (float64, error)
	// ListPendingOlderThan feeds the reconciliation job: pending
	// transactions created before cutoff whose settlement never arrived.
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.TipTransaction, error)
}

// OrderLookup is the slice of the order store the ledger needs: tips are
// only valid against delivered orders.
type OrderLookup interface {
	Get(ctx context.Context, id string) (*orderdomain.Order, error)
}

type Service struct {
	repo    Repository
	orders  OrderLookup
	gateway payment.Gateway
	events  notify.Publisher
	// settleTimeout bounds the gateway call; on expiry the transaction
	// stays pending for the callback or reconciliation to resolve.
	settleTimeout time.Duration
	now           func() time.Time
	locks         *syncx.KeyMutex
}

func NewService(repo Repository, orders OrderLookup, gateway payment.Gateway, events notify.Publisher, settleTimeout time.Duration, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if settleTimeout <= 0 {
		settleTimeout = 10 * time.Second
	}
	return &Service{
		repo:          repo,
		orders:        orders,
		gateway:       gateway,
		events:        events,
		settleTimeout: settleTimeout,
		now:           now,
		locks:         syncx.NewKeyMutex(),
	}
}

// SendTip validates and appends a pending tip, kicks off settlement in the
// background, and returns the pending record immediately. Settlement is
// at-least-once: callers poll or subscribe to TipEvents for the outcome.
func (s *Service) SendTip(ctx context.Context, fromUserID, recipientID string, recipientType domain.RecipientType, amount float64, message, orderID string) (*domain.TipTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %.2f: %w", amount, domain.ErrInvalidTip)
	}
	if !recipientType.Valid() {
		return nil, fmt.Errorf("unknown recipient type %q: %w", recipientType, domain.ErrInvalidTip)
	}
	if fromUserID == "" || recipientID == "" {
		return nil, fmt.Errorf("sender and recipient are required: %w", domain.ErrInvalidTip)
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, orderdomain.ErrNotFound) {
			return nil, fmt.Errorf("order %s not found: %w", orderID, domain.ErrInvalidTip)
		}
		return nil, fmt.Errorf("look up order %s: %w", orderID, err)
	}
	if o.Status != orderdomain.StatusDelivered {
		return nil, fmt.Errorf("order %s is %s, tips are accepted only after delivery: %w",
			orderID, o.Status, domain.ErrInvalidTip)
	}

	done, err := s.repo.HasCompleted(ctx, orderID, recipientType)
	if err != nil {
		return nil, fmt.Errorf("check existing tips for order %s: %w", orderID, err)
	}
	if done {
		return nil, fmt.Errorf("order %s already has a completed %s tip: %w", orderID, recipientType, domain.ErrInvalidTip)
	}

	t := &domain.TipTransaction{
		ID:            uuid.NewString(),
		FromUserID:    fromUserID,
		RecipientID:   recipientID,
		RecipientType: recipientType,
		Amount:        amount,
		Message:       message,
		OrderID:       orderID,
		Status:        domain.TipPending,
		CreatedAt:     s.now(),
	}
	if err := s.repo.Append(ctx, t); err != nil {
		return nil, fmt.Errorf("append tip: %w", err)
	}

	s.events.PublishTipEvent(ctx, notify.TipEvent{
		TipID:      t.ID,
		OrderID:    orderID,
		Status:     domain.TipPending,
		OccurredAt: t.CreatedAt,
	})
	slog.InfoContext(ctx, "tip created", "tip_id", t.ID, "order_id", orderID, "recipient_type", recipientType, "amount", amount)

	// Detach from the request context so settlement is not cancelled when
	// the caller's HTTP response is written, while keeping trace metadata.
	go s.settle(context.WithoutCancel(ctx), t.ID, amount)

	returned := *t
	return &returned, nil
}

// settle invokes the gateway with a bounded timeout and feeds the result
// back through OnSettlement. On timeout or transport error the transaction
// simply stays pending.
func (s *Service) settle(ctx context.Context, tipID string, amount float64) {
	ctx, cancel := context.WithTimeout(ctx, s.settleTimeout)
	defer cancel()

	res, err := s.gateway.Settle(ctx, tipID, amount)
	if err != nil {
		slog.WarnContext(ctx, "gateway settle did not resolve, tip stays pending", "tip_id", tipID, "error", err)
		return
	}
	if err := s.OnSettlement(ctx, tipID, res); err != nil {
		slog.ErrorContext(ctx, "failed to record settlement", "tip_id", tipID, "error", err)
	}
}

// OnSettlement records the gateway's verdict for a pending transaction.
// It is also the entry point for the gateway's own callback, so a late
// callback after a timeout resolves the transaction the same way. Calls for
// an already-settled transaction fail with domain.ErrAlreadySettled.
func (s *Service) OnSettlement(ctx context.Context, tipID string, res payment.Result) error {
	defer s.locks.Lock(tipID)()

	status := domain.TipCompleted
	reference := res.Reference
	if res.Failed {
		status = domain.TipFailed
		reference = ""
	}

	t, err := s.repo.Settle(ctx, tipID, status, reference, s.now())
	if err != nil {
		return err
	}

	s.events.PublishTipEvent(ctx, notify.TipEvent{
		TipID:      t.ID,
		OrderID:    t.OrderID,
		Status:     t.Status,
		OccurredAt: t.SettledAt,
	})
	slog.InfoContext(ctx, "tip settled", "tip_id", t.ID, "status", t.Status, "reference", t.Reference)
	return nil
}

// GetTip returns a single transaction by id.
func (s *Service) GetTip(ctx context.Context, id string) (*domain.TipTransaction, error) {
	return s.repo.Get(ctx, id)
}

// TipsReceived lists the completed tips credited to userID.
func (s *Service) TipsReceived(ctx context.Context, userID string) ([]*domain.TipTransaction, error) {
	return s.repo.ListByRecipient(ctx, userID, domain.TipCompleted)
}

// TipsSent lists the completed tips userID has sent.
func (s *Service) TipsSent(ctx context.Context, userID string) ([]*domain.TipTransaction, error) {
	return s.repo.ListBySender(ctx, userID, domain.TipCompleted)
}

// TotalTipsReceived sums completed tips for userID within the period
// relative to the injected clock. PeriodAll sums the whole ledger.
func (s *Service) TotalTipsReceived(ctx context.Context, userID string, period domain.Period) (float64, error) {
	if !period.Valid() {
		return 0, fmt.Errorf("unknown period %q: %w", period, domain.ErrInvalidTip)
	}
	var since time.Time
	if start, ok := period.Start(s.now()); ok {
		since = start
	}
	return s.repo.SumCompletedByRecipient(ctx, userID, since)
}

// PendingOlderThan lists settlements that have been pending longer than age.
// A reconciliation job calls this to find transfers whose gateway answer was
// lost and resolve them out of band.
func (s *Service) PendingOlderThan(ctx context.Context, age time.Duration) ([]*domain.TipTransaction, error) {
	return s.repo.ListPendingOlderThan(ctx, s.now().Add(-age))
}
