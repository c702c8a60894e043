package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ledgerdomain "github.com/platemate/order-ledger/internal/ledger/domain"
	orderdomain "github.com/platemate/order-ledger/internal/order/domain"
)

func TestBus_FansOut(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe(4)
	b := bus.Subscribe(4)

	bus.PublishOrderEvent(context.Background(), OrderEvent{
		OrderID: "order-1",
		From:    orderdomain.StatusPending,
		To:      orderdomain.StatusAccepted,
	})

	for _, ch := range []<-chan any{a, b} {
		e := (<-ch).(OrderEvent)
		assert.Equal(t, "order-1", e.OrderID)
		assert.Equal(t, orderdomain.StatusAccepted, e.To)
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	bus := NewBus()
	ch := bus.Subscribe(1)

	bus.PublishTipEvent(context.Background(), TipEvent{TipID: "tip-1", Status: ledgerdomain.TipPending})
	// Buffer is full; this one is dropped, and publishing must not block.
	done := make(chan struct{})
	go func() {
		bus.PublishTipEvent(context.Background(), TipEvent{TipID: "tip-2", Status: ledgerdomain.TipPending})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	e := (<-ch).(TipEvent)
	require.Equal(t, "tip-1", e.TipID)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event %v", extra)
	default:
	}
}
