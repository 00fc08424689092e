package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tranche/contexts/token-distribution/treasury-service/ports"
)

type Store struct {
	mu         sync.RWMutex
	accounts   map[string]ports.Account
	allowances map[string]ports.Allowance
	payouts    map[string]ports.Payout
}

var (
	_ ports.Repository = (*Store)(nil)
	_ ports.Clock      = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		accounts:   map[string]ports.Account{},
		allowances: map[string]ports.Allowance{},
		payouts:    map[string]ports.Payout{},
	}
}

func (s *Store) GetAccount(_ context.Context, address string) (ports.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, found := s.accounts[address]
	return account, found, nil
}

func (s *Store) SaveAccount(_ context.Context, account ports.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Address] = account
	return nil
}

func (s *Store) GetAllowance(_ context.Context, owner string, spender string) (ports.Allowance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowance, found := s.allowances[allowanceKey(owner, spender)]
	return allowance, found, nil
}

func (s *Store) SaveAllowance(_ context.Context, allowance ports.Allowance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowances[allowanceKey(allowance.Owner, allowance.Spender)] = allowance
	return nil
}

func (s *Store) RecordPayout(_ context.Context, payout ports.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.payouts[payout.PayoutID]; exists {
		return nil
	}
	s.payouts[payout.PayoutID] = payout
	return nil
}

func (s *Store) ListPayoutsByRecipient(
	_ context.Context,
	recipient string,
	limit int,
	offset int,
) ([]ports.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]ports.Payout, 0)
	for _, payout := range s.payouts {
		if payout.Recipient == recipient {
			matched = append(matched, payout)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].RecordedAt.Equal(matched[j].RecordedAt) {
			return matched[i].PayoutID < matched[j].PayoutID
		}
		return matched[i].RecordedAt.After(matched[j].RecordedAt)
	})
	if offset >= len(matched) {
		return []ports.Payout{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func allowanceKey(owner string, spender string) string {
	return owner + "\x00" + spender
}
