// Package httpx is the thin HTTP surface the external collaborators call:
// checkout posts orders, the chef and delivery dashboards drive transitions,
// customers send tips, and the payment gateway posts settlement callbacks.
// All business rules live in the app packages; this layer only decodes,
// delegates, and maps errors to status codes.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/platemate/order-ledger/internal/fees"
	ledgerapp "github.com/platemate/order-ledger/internal/ledger/app"
	ledgerdomain "github.com/platemate/order-ledger/internal/ledger/domain"
	orderapp "github.com/platemate/order-ledger/internal/order/app"
	"github.com/platemate/order-ledger/internal/order/domain"
	"github.com/platemate/order-ledger/internal/payment"
	"github.com/platemate/order-ledger/internal/pkg/cache"
)

type Handler struct {
	orders *orderapp.Service
	ledger *ledgerapp.Service
	feeCfg fees.Config
	// cache may be nil: order reads then always hit the repository.
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewHandler(orders *orderapp.Service, ledger *ledgerapp.Service, feeCfg fees.Config, c cache.Cache, cacheTTL time.Duration) *Handler {
	return &Handler{
		orders:   orders,
		ledger:   ledger,
		feeCfg:   feeCfg,
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = domain.OrderItem{MenuItemID: it.MenuItemID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}

	order, err := h.orders.Create(r.Context(), req.CustomerID, req.ChefID, req.DeliveryAddress, items)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrderToResponse(order))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	if body, ok := h.cachedOrder(r, orderID); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := mapOrderToResponse(order)
	h.cacheOrder(r, orderID, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	order, err := h.orders.Transition(r.Context(), orderID,
		domain.Status(req.TargetStatus), domain.ActorRole(req.ActorRole), req.ActorID, req.ExpectedVersion)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.invalidateOrder(r, orderID)
	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	result, err := h.orders.Cancel(r.Context(), orderID, domain.ActorRole(req.ActorRole), req.ExpectedVersion)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	h.invalidateOrder(r, orderID)
	writeJSON(w, http.StatusOK, CancellationResponse{
		Order:   mapOrderToResponse(result.Order),
		Penalty: result.Penalty,
		Free:    result.Free,
	})
}

// GetOrderFees returns the platform's fee breakdown for an order, derived
// on demand from the order total and the configured rates.
func (h *Handler) GetOrderFees(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	breakdown, err := fees.Compute(order.TotalAmount, h.feeCfg)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FeeBreakdownResponse{
		OrderID:       order.ID,
		OrderTotal:    order.TotalAmount,
		Commission:    breakdown.Commission,
		ProcessingFee: breakdown.ProcessingFee,
		Tax:           breakdown.Tax,
		NetPayout:     breakdown.NetPayout,
	})
}

// SendTip returns 202: the transaction is accepted pending and settles in
// the background. Callers watch TipEvents or poll GET /tips/{id}.
func (h *Handler) SendTip(w http.ResponseWriter, r *http.Request) {
	var req SendTipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	tip, err := h.ledger.SendTip(r.Context(), req.FromUserID, req.RecipientID,
		ledgerdomain.RecipientType(req.RecipientType), req.Amount, req.Message, req.OrderID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, mapTipToResponse(tip))
}

func (h *Handler) GetTip(w http.ResponseWriter, r *http.Request) {
	tip, err := h.ledger.GetTip(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapTipToResponse(tip))
}

// TipSettlement is the payment gateway's callback. It resolves a pending
// transaction exactly once; late duplicates get 409.
func (h *Handler) TipSettlement(w http.ResponseWriter, r *http.Request) {
	tipID := chi.URLParam(r, "id")

	var req SettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	err := h.ledger.OnSettlement(r.Context(), tipID, payment.Result{
		Reference: req.Reference,
		Failed:    req.Failed,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	tip, err := h.ledger.GetTip(r.Context(), tipID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapTipToResponse(tip))
}

func (h *Handler) ListUserTips(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var (
		tips []*ledgerdomain.TipTransaction
		err  error
	)
	switch dir := r.URL.Query().Get("direction"); dir {
	case "", "received":
		tips, err = h.ledger.TipsReceived(r.Context(), userID)
	case "sent":
		tips, err = h.ledger.TipsSent(r.Context(), userID)
	default:
		writeError(w, http.StatusBadRequest, "invalid_direction", "direction must be received or sent")
		return
	}
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapTipsToResponse(tips))
}

func (h *Handler) GetUserTipTotal(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	period := ledgerdomain.Period(r.URL.Query().Get("period"))

	total, err := h.ledger.TotalTipsReceived(r.Context(), userID, period)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TipTotalResponse{UserID: userID, Period: string(period), Total: total})
}

// ListPendingTips serves the reconciliation job: pending settlements older
// than ?older_than= (default 30m).
func (h *Handler) ListPendingTips(w http.ResponseWriter, r *http.Request) {
	age := 30 * time.Minute
	if v := r.URL.Query().Get("older_than"); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_duration", err.Error())
			return
		}
		age = parsed
	}

	tips, err := h.ledger.PendingOlderThan(r.Context(), age)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapTipsToResponse(tips))
}

// cachedOrder serves a GET from Redis when possible. Cache failures are
// logged and treated as misses.
func (h *Handler) cachedOrder(r *http.Request, orderID string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}
	key := h.cache.GenerateKey("order", orderID)
	val, err := h.cache.Get(r.Context(), key)
	if err != nil {
		slog.WarnContext(r.Context(), "order cache read failed", "order_id", orderID, "error", err)
		return nil, false
	}
	if val == "" {
		return nil, false
	}
	return []byte(val), true
}

func (h *Handler) cacheOrder(r *http.Request, orderID string, resp OrderResponse) {
	if h.cache == nil {
		return
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return
	}
	key := h.cache.GenerateKey("order", orderID)
	if err := h.cache.Set(r.Context(), key, string(body), h.cacheTTL); err != nil {
		slog.WarnContext(r.Context(), "order cache write failed", "order_id", orderID, "error", err)
	}
}

func (h *Handler) invalidateOrder(r *http.Request, orderID string) {
	if h.cache == nil {
		return
	}
	key := h.cache.GenerateKey("order", orderID)
	if err := h.cache.Del(r.Context(), key); err != nil {
		slog.WarnContext(r.Context(), "order cache invalidation failed", "order_id", orderID, "error", err)
	}
}

// writeDomainError maps the core's sentinel errors onto status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, "invalid_order", err.Error())
	case errors.Is(err, ledgerdomain.ErrInvalidTip):
		writeError(w, http.StatusBadRequest, "invalid_tip", err.Error())
	case errors.Is(err, domain.ErrUnauthorizedActor):
		writeError(w, http.StatusForbidden, "unauthorized_actor", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, ledgerdomain.ErrTipNotFound):
		writeError(w, http.StatusNotFound, "tip_not_found", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "already_terminal", err.Error())
	case errors.Is(err, domain.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, ledgerdomain.ErrAlreadySettled):
		writeError(w, http.StatusConflict, "already_settled", err.Error())
	default:
		slog.ErrorContext(r.Context(), "internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
