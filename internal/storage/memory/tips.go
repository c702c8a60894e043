package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platemate/order-ledger/internal/ledger/app"
	"github.com/platemate/order-ledger/internal/ledger/domain"
)

var _ app.Repository = (*TipStore)(nil)

// TipStore keeps tip transactions in insertion order. Append-only: rows are
// settled in place exactly once but never removed.
type TipStore struct {
	mu   sync.RWMutex
	tips []*domain.TipTransaction
	byID map[string]*domain.TipTransaction
}

func NewTipStore() *TipStore {
	return &TipStore{byID: make(map[string]*domain.TipTransaction)}
}

func (s *TipStore) Append(ctx context.Context, t *domain.TipTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[t.ID]; exists {
		return fmt.Errorf("memory: tip %s already exists", t.ID)
	}
	cp := *t
	s.tips = append(s.tips, &cp)
	s.byID[t.ID] = &cp
	return nil
}

func (s *TipStore) Get(ctx context.Context, id string) (*domain.TipTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("memory: tip %s: %w", id, domain.ErrTipNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *TipStore) Settle(ctx context.Context, id string, status domain.TipStatus, reference string, settledAt time.Time) (*domain.TipTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("memory: tip %s: %w", id, domain.ErrTipNotFound)
	}
	if t.Status != domain.TipPending {
		return nil, fmt.Errorf("memory: tip %s is %s: %w", id, t.Status, domain.ErrAlreadySettled)
	}
	if status == domain.TipCompleted {
		for _, other := range s.tips {
			if other.ID != id && other.OrderID == t.OrderID &&
				other.RecipientType == t.RecipientType && other.Status == domain.TipCompleted {
				return nil, fmt.Errorf("memory: order %s already has a completed %s tip: %w",
					t.OrderID, t.RecipientType, domain.ErrInvalidTip)
			}
		}
	}
	t.Status = status
	t.Reference = reference
	t.SettledAt = settledAt
	cp := *t
	return &cp, nil
}

func (s *TipStore) HasCompleted(ctx context.Context, orderID string, rt domain.RecipientType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tips {
		if t.OrderID == orderID && t.RecipientType == rt && t.Status == domain.TipCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (s *TipStore) ListByRecipient(ctx context.Context, userID string, status domain.TipStatus) ([]*domain.TipTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.TipTransaction
	for _, t := range s.tips {
		if t.RecipientID == userID && t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *TipStore) ListBySender(ctx context.Context, userID string, status domain.TipStatus) ([]*domain.TipTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.TipTransaction
	for _, t := range s.tips {
		if t.FromUserID == userID && t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *TipStore) SumCompletedByRecipient(ctx context.Context, userID string, since time.Time) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, t := range s.tips {
		if t.RecipientID != userID || t.Status != domain.TipCompleted {
			continue
		}
		if !since.IsZero() && t.CreatedAt.Before(since) {
			continue
		}
		total += t.Amount
	}
	return total, nil
}

func (s *TipStore) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.TipTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.TipTransaction
	for _, t := range s.tips {
		if t.Status == domain.TipPending && t.CreatedAt.Before(cutoff) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
