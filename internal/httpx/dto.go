package httpx

import (
	"time"

	ledgerdomain "github.com/platemate/order-ledger/internal/ledger/domain"
	"github.com/platemate/order-ledger/internal/order/domain"
)

type CreateOrderRequest struct {
	CustomerID      string               `json:"customer_id"`
	ChefID          string               `json:"chef_id"`
	DeliveryAddress string               `json:"delivery_address"`
	Items           []CreateOrderItemDTO `json:"items"`
}

type CreateOrderItemDTO struct {
	MenuItemID string  `json:"menu_item_id"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
}

type TransitionRequest struct {
	TargetStatus string `json:"target_status"`
	ActorRole    string `json:"actor_role"`
	// ActorID is the acting user's id. It becomes the order's courier on
	// the transition into out_for_delivery.
	ActorID string `json:"actor_id,omitempty"`
	// ExpectedVersion is the optimistic-concurrency stamp the caller read.
	// Zero skips the caller-side check.
	ExpectedVersion int64 `json:"expected_version,omitempty"`
}

type CancelRequest struct {
	ActorRole       string `json:"actor_role"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

type OrderResponse struct {
	ID               string               `json:"id"`
	CustomerID       string               `json:"customer_id"`
	ChefID           string               `json:"chef_id"`
	DeliveryPersonID string               `json:"delivery_person_id,omitempty"`
	Items            []CreateOrderItemDTO `json:"items"`
	TotalAmount      float64              `json:"total_amount"`
	Status           string               `json:"status"`
	DeliveryAddress  string               `json:"delivery_address"`
	Penalty          float64              `json:"penalty,omitempty"`
	Version          int64                `json:"version"`
	CreatedAt        string               `json:"created_at"`
	StatusChangedAt  string               `json:"status_changed_at"`
}

type CancellationResponse struct {
	Order   OrderResponse `json:"order"`
	Penalty float64       `json:"penalty"`
	Free    bool          `json:"free"`
}

type FeeBreakdownResponse struct {
	OrderID       string  `json:"order_id"`
	OrderTotal    float64 `json:"order_total"`
	Commission    float64 `json:"commission"`
	ProcessingFee float64 `json:"processing_fee"`
	Tax           float64 `json:"tax"`
	NetPayout     float64 `json:"net_payout"`
}

type SendTipRequest struct {
	FromUserID    string  `json:"from_user_id"`
	RecipientID   string  `json:"recipient_id"`
	RecipientType string  `json:"recipient_type"`
	Amount        float64 `json:"amount"`
	Message       string  `json:"message,omitempty"`
	OrderID       string  `json:"order_id"`
}

// SettlementRequest is the payment gateway's callback payload.
type SettlementRequest struct {
	Reference string `json:"reference,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type TipResponse struct {
	ID            string  `json:"id"`
	FromUserID    string  `json:"from_user_id"`
	RecipientID   string  `json:"recipient_id"`
	RecipientType string  `json:"recipient_type"`
	Amount        float64 `json:"amount"`
	Message       string  `json:"message,omitempty"`
	OrderID       string  `json:"order_id"`
	Status        string  `json:"status"`
	Reference     string  `json:"reference,omitempty"`
	CreatedAt     string  `json:"created_at"`
	SettledAt     string  `json:"settled_at,omitempty"`
}

type TipTotalResponse struct {
	UserID string  `json:"user_id"`
	Period string  `json:"period,omitempty"`
	Total  float64 `json:"total"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapOrderToResponse(o *domain.Order) OrderResponse {
	items := make([]CreateOrderItemDTO, len(o.Items))
	for i, it := range o.Items {
		items[i] = CreateOrderItemDTO{MenuItemID: it.MenuItemID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return OrderResponse{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		ChefID:           o.ChefID,
		DeliveryPersonID: o.DeliveryPersonID,
		Items:            items,
		TotalAmount:      o.TotalAmount,
		Status:           string(o.Status),
		DeliveryAddress:  o.DeliveryAddress,
		Penalty:          o.CancellationPenalty,
		Version:          o.Version,
		CreatedAt:        o.CreatedAt.Format(time.RFC3339Nano),
		StatusChangedAt:  o.StatusChangedAt.Format(time.RFC3339Nano),
	}
}

func mapTipToResponse(t *ledgerdomain.TipTransaction) TipResponse {
	resp := TipResponse{
		ID:            t.ID,
		FromUserID:    t.FromUserID,
		RecipientID:   t.RecipientID,
		RecipientType: string(t.RecipientType),
		Amount:        t.Amount,
		Message:       t.Message,
		OrderID:       t.OrderID,
		Status:        string(t.Status),
		Reference:     t.Reference,
		CreatedAt:     t.CreatedAt.Format(time.RFC3339Nano),
	}
	if !t.SettledAt.IsZero() {
		resp.SettledAt = t.SettledAt.Format(time.RFC3339Nano)
	}
	return resp
}

func mapTipsToResponse(tips []*ledgerdomain.TipTransaction) []TipResponse {
	out := make([]TipResponse, len(tips))
	for i, t := range tips {
		out[i] = mapTipToResponse(t)
	}
	return out
}
