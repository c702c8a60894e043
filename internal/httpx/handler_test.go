package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platemate/order-ledger/internal/fees"
	ledgerapp "github.com/platemate/order-ledger/internal/ledger/app"
	"github.com/platemate/order-ledger/internal/notify"
	orderapp "github.com/platemate/order-ledger/internal/order/app"
	"github.com/platemate/order-ledger/internal/order/domain"
	"github.com/platemate/order-ledger/internal/payment"
	"github.com/platemate/order-ledger/internal/storage/memory"
)

// stubGateway never answers, so tips stay pending until the callback
// endpoint resolves them. That keeps the HTTP tests deterministic.
type stubGateway struct{}

func (stubGateway) Settle(ctx context.Context, tipID string, amount float64) (payment.Result, error) {
	<-ctx.Done()
	return payment.Result{}, ctx.Err()
}

func newTestServer(t *testing.T) (*httptest.Server, *memory.OrderStore) {
	t.Helper()

	orderStore := memory.NewOrderStore()
	tipStore := memory.NewTipStore()
	bus := notify.NewBus()

	orders := orderapp.NewService(orderStore, bus, domain.DefaultCancellationPolicy(), nil)
	ledger := ledgerapp.NewService(tipStore, orderStore, stubGateway{}, bus, 50*time.Millisecond, nil)

	feeCfg := fees.Config{
		ChefCommissionRate:    0.15,
		PaymentProcessingRate: 0.025,
		GSTRate:               0.18,
		MinimumOrderForFee:    100,
		Method:                fees.MethodOrderValue,
	}

	handler := NewHandler(orders, ledger, feeCfg, nil, 0)
	srv := httptest.NewServer(NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, orderStore
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func createOrder(t *testing.T, srv *httptest.Server) OrderResponse {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", CreateOrderRequest{
		CustomerID:      "cust-1",
		ChefID:          "chef-1",
		DeliveryAddress: "12 MG Road",
		Items: []CreateOrderItemDTO{
			{MenuItemID: "paneer-tikka", Quantity: 2, UnitPrice: 100},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[OrderResponse](t, resp)
}

func transition(t *testing.T, srv *httptest.Server, orderID, target, actor string) *http.Response {
	t.Helper()
	return doJSON(t, http.MethodPost, srv.URL+"/orders/"+orderID+"/transition",
		TransitionRequest{TargetStatus: target, ActorRole: actor})
}

func deliverOrder(t *testing.T, srv *httptest.Server, orderID string) {
	t.Helper()
	steps := []struct{ target, actor string }{
		{"accepted", "chef"}, {"preparing", "chef"}, {"ready", "chef"},
		{"out_for_delivery", "delivery"}, {"delivered", "delivery"},
	}
	for _, s := range steps {
		resp := transition(t, srv, orderID, s.target, s.actor)
		require.Equal(t, http.StatusOK, resp.StatusCode, "to %s", s.target)
		resp.Body.Close()
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	srv, _ := newTestServer(t)

	order := createOrder(t, srv)
	assert.Equal(t, "pending", order.Status)
	assert.InDelta(t, 200, order.TotalAmount, 0.001)
	assert.Equal(t, int64(1), order.Version)

	resp, err := http.Get(srv.URL + "/orders/" + order.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[OrderResponse](t, resp)
	assert.Equal(t, order.ID, got.ID)
}

func TestCreateOrder_Invalid(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders", CreateOrderRequest{
		CustomerID: "cust-1",
		ChefID:     "chef-1",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decode[ErrorResponse](t, resp)
	assert.Equal(t, "invalid_order", errResp.Error)
}

func TestGetOrder_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/orders/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTransitionOrder_RecordsCourier(t *testing.T) {
	srv, _ := newTestServer(t)

	order := createOrder(t, srv)
	for _, s := range []struct{ target, actor string }{
		{"accepted", "chef"}, {"preparing", "chef"}, {"ready", "chef"},
	} {
		resp := transition(t, srv, order.ID, s.target, s.actor)
		require.Equal(t, http.StatusOK, resp.StatusCode, "to %s", s.target)
		resp.Body.Close()
	}

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders/"+order.ID+"/transition",
		TransitionRequest{TargetStatus: "out_for_delivery", ActorRole: "delivery", ActorID: "rider-7"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[OrderResponse](t, resp)
	assert.Equal(t, "rider-7", got.DeliveryPersonID)
}

func TestTransitionErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	order := createOrder(t, srv)

	// Illegal edge.
	resp := transition(t, srv, order.ID, "ready", "chef")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, resp).Error)

	// Wrong actor.
	resp = transition(t, srv, order.ID, "accepted", "customer")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "unauthorized_actor", decode[ErrorResponse](t, resp).Error)

	// Stale version stamp.
	resp = doJSON(t, http.MethodPost, srv.URL+"/orders/"+order.ID+"/transition",
		TransitionRequest{TargetStatus: "accepted", ActorRole: "chef", ExpectedVersion: 99})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "version_conflict", decode[ErrorResponse](t, resp).Error)
}

func TestCancelOrder(t *testing.T) {
	srv, _ := newTestServer(t)
	order := createOrder(t, srv)

	resp := doJSON(t, http.MethodPost, srv.URL+"/orders/"+order.ID+"/cancel",
		CancelRequest{ActorRole: "customer"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decode[CancellationResponse](t, resp)
	assert.True(t, result.Free)
	assert.Equal(t, "cancelled", result.Order.Status)

	// Cancelling again is already-terminal, not a hard failure.
	resp = doJSON(t, http.MethodPost, srv.URL+"/orders/"+order.ID+"/cancel",
		CancelRequest{ActorRole: "customer"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_terminal", decode[ErrorResponse](t, resp).Error)
}

func TestGetOrderFees(t *testing.T) {
	srv, _ := newTestServer(t)
	order := createOrder(t, srv) // total 200

	resp, err := http.Get(srv.URL + "/orders/" + order.ID + "/fees")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	breakdown := decode[FeeBreakdownResponse](t, resp)
	assert.InDelta(t, 30, breakdown.Commission, 0.001)
	assert.InDelta(t, 5, breakdown.ProcessingFee, 0.001)
	assert.InDelta(t, 6.3, breakdown.Tax, 0.001)
	assert.InDelta(t, 158.7, breakdown.NetPayout, 0.001)
}

func TestTipLifecycleOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)
	order := createOrder(t, srv)

	// Tips are rejected until the order is delivered.
	resp := doJSON(t, http.MethodPost, srv.URL+"/tips", SendTipRequest{
		FromUserID: "cust-1", RecipientID: "chef-1", RecipientType: "chef",
		Amount: 50, OrderID: order.ID,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_tip", decode[ErrorResponse](t, resp).Error)

	deliverOrder(t, srv, order.ID)

	resp = doJSON(t, http.MethodPost, srv.URL+"/tips", SendTipRequest{
		FromUserID: "cust-1", RecipientID: "chef-1", RecipientType: "chef",
		Amount: 50, Message: "thanks!", OrderID: order.ID,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	tip := decode[TipResponse](t, resp)
	assert.Equal(t, "pending", tip.Status)

	// Gateway callback completes the settlement.
	resp = doJSON(t, http.MethodPost, srv.URL+"/tips/"+tip.ID+"/settlement",
		SettlementRequest{Reference: "txn-42"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	settled := decode[TipResponse](t, resp)
	assert.Equal(t, "completed", settled.Status)
	assert.Equal(t, "txn-42", settled.Reference)

	// Duplicate callback loses cleanly.
	resp = doJSON(t, http.MethodPost, srv.URL+"/tips/"+tip.ID+"/settlement",
		SettlementRequest{Reference: "txn-43"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "already_settled", decode[ErrorResponse](t, resp).Error)

	// Totals and listings reflect the completed tip.
	resp, err := http.Get(srv.URL + "/users/chef-1/tips/total")
	require.NoError(t, err)
	total := decode[TipTotalResponse](t, resp)
	assert.InDelta(t, 50, total.Total, 0.001)

	resp, err = http.Get(srv.URL + "/users/chef-1/tips?direction=received")
	require.NoError(t, err)
	received := decode[[]TipResponse](t, resp)
	require.Len(t, received, 1)
	assert.Equal(t, tip.ID, received[0].ID)

	resp, err = http.Get(srv.URL + "/users/cust-1/tips?direction=sent")
	require.NoError(t, err)
	sent := decode[[]TipResponse](t, resp)
	require.Len(t, sent, 1)
}

func TestListPendingTips(t *testing.T) {
	srv, _ := newTestServer(t)
	order := createOrder(t, srv)
	deliverOrder(t, srv, order.ID)

	resp := doJSON(t, http.MethodPost, srv.URL+"/tips", SendTipRequest{
		FromUserID: "cust-1", RecipientID: "rider-1", RecipientType: "delivery",
		Amount: 30, OrderID: order.ID,
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	// The stub gateway never answers, so the tip is still pending.
	res, err := http.Get(srv.URL + "/tips/pending?older_than=0s")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	pending := decode[[]TipResponse](t, res)
	require.Len(t, pending, 1)
	assert.Equal(t, "pending", pending[0].Status)
}
