// Package memory provides an in-memory Store implementation, primarily for
// tests and single-process deployments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xraph/tollgate"
	"github.com/xraph/tollgate/account"
	"github.com/xraph/tollgate/history"
	"github.com/xraph/tollgate/id"
	"github.com/xraph/tollgate/payment"
	"github.com/xraph/tollgate/platform"
	"github.com/xraph/tollgate/protocol"
)

type Store struct {
	mu sync.RWMutex

	// Protocol singleton
	proto *protocol.Protocol

	// Platform storage
	platforms map[string]*platform.Platform

	// Account storage, keyed by platformID/owner
	accounts map[string]*account.Account

	// History storage
	entries []history.Entry
}

func New() *Store {
	return &Store{
		platforms: make(map[string]*platform.Platform),
		accounts:  make(map[string]*account.Account),
		entries:   make([]history.Entry, 0),
	}
}

func accountKey(platformID id.PlatformID, owner string) string {
	return platformID.String() + "/" + owner
}

// Protocol Store implementation
func (s *Store) InitProtocol(_ context.Context, proto *protocol.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proto != nil {
		return tollgate.ErrProtocolInitialized
	}
	s.proto = proto
	return nil
}

func (s *Store) GetProtocol(_ context.Context) (*protocol.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.proto == nil {
		return nil, tollgate.ErrProtocolNotInitialized
	}
	return s.proto, nil
}

func (s *Store) WithdrawProtocol(_ context.Context, assetKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proto == nil {
		return 0, tollgate.ErrProtocolNotInitialized
	}
	amount, ok := s.proto.Treasury.Withdraw(assetKey)
	if !ok {
		return 0, tollgate.ErrNotFound
	}
	s.proto.Touch()
	return amount, nil
}

// Platform Store implementation
func (s *Store) CreatePlatform(_ context.Context, p *platform.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.platforms[p.ID.String()]; exists {
		return tollgate.ErrPlatformExists
	}
	s.platforms[p.ID.String()] = p
	return nil
}

func (s *Store) GetPlatform(_ context.Context, platformID id.PlatformID) (*platform.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.platforms[platformID.String()]; ok {
		return p, nil
	}
	return nil, tollgate.ErrPlatformNotFound
}

func (s *Store) ListPlatforms(_ context.Context, opts platform.ListOpts) ([]*platform.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*platform.Platform, 0)
	for _, p := range s.platforms {
		if opts.Asset == "" || p.Accepts(opts.Asset) {
			result = append(result, p)
		}
	}

	// Apply limit/offset
	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) WithdrawPlatform(_ context.Context, platformID id.PlatformID, assetKey string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.platforms[platformID.String()]
	if !ok {
		return 0, tollgate.ErrPlatformNotFound
	}
	amount, ok := p.Treasury.Withdraw(assetKey)
	if !ok {
		return 0, tollgate.ErrNotFound
	}
	p.Touch()
	return amount, nil
}

// Account Store implementation
func (s *Store) GetAccount(_ context.Context, platformID id.PlatformID, owner string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.accounts[accountKey(platformID, owner)]; ok {
		return a, nil
	}
	return nil, tollgate.ErrNoSubscription
}

func (s *Store) ListAccounts(_ context.Context, platformID id.PlatformID, opts account.ListOpts) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*account.Account, 0)
	for _, a := range s.accounts {
		if a.PlatformID.String() == platformID.String() {
			result = append(result, a)
		}
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) CommitSubscription(_ context.Context, rcpt *payment.Receipt, acct *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proto == nil {
		return tollgate.ErrProtocolNotInitialized
	}
	p, ok := s.platforms[rcpt.PlatformID.String()]
	if !ok {
		return tollgate.ErrPlatformNotFound
	}
	key := accountKey(rcpt.PlatformID, rcpt.Owner)
	if _, exists := s.accounts[key]; exists {
		return tollgate.ErrSubscriptionExists
	}
	if !rcpt.Conserves() {
		return tollgate.ErrValueNotConserved
	}

	s.proto.Treasury.DepositFunds(rcpt.ProtocolShare)
	p.Treasury.DepositFunds(rcpt.PlatformShare)
	s.proto.Touch()
	p.Touch()
	s.accounts[key] = acct
	return nil
}

func (s *Store) CommitRenewal(_ context.Context, rcpt *payment.Receipt, now time.Time, period time.Duration) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proto == nil {
		return nil, tollgate.ErrProtocolNotInitialized
	}
	p, ok := s.platforms[rcpt.PlatformID.String()]
	if !ok {
		return nil, tollgate.ErrPlatformNotFound
	}
	acct, ok := s.accounts[accountKey(rcpt.PlatformID, rcpt.Owner)]
	if !ok {
		return nil, tollgate.ErrNoSubscription
	}
	if !rcpt.Conserves() {
		return nil, tollgate.ErrValueNotConserved
	}

	s.proto.Treasury.DepositFunds(rcpt.ProtocolShare)
	p.Treasury.DepositFunds(rcpt.PlatformShare)
	s.proto.Touch()
	p.Touch()
	acct.Renew(now, period)
	return acct, nil
}

func (s *Store) RemoveAccount(_ context.Context, platformID id.PlatformID, owner string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := accountKey(platformID, owner)
	acct, ok := s.accounts[key]
	if !ok {
		return nil, tollgate.ErrNoSubscription
	}
	delete(s.accounts, key)
	return acct, nil
}

func (s *Store) CreditEscrow(_ context.Context, platformID id.PlatformID, owner, assetKey string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[accountKey(platformID, owner)]
	if !ok {
		return tollgate.ErrNoSubscription
	}
	acct.Escrow.Deposit(assetKey, amount)
	acct.Touch()
	return nil
}

// History Store implementation
func (s *Store) AppendHistory(_ context.Context, entries []*history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		s.entries = append(s.entries, *e)
	}
	return nil
}

func (s *Store) QueryHistory(_ context.Context, platformID id.PlatformID, owner string, opts history.QueryOpts) ([]*history.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*history.Entry, 0)
	for i := range s.entries {
		e := &s.entries[i]
		if e.PlatformID.String() != platformID.String() || e.Owner != owner {
			continue
		}
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		if (opts.Start.IsZero() || e.Timestamp.After(opts.Start)) &&
			(opts.End.IsZero() || e.Timestamp.Before(opts.End)) {
			result = append(result, e)
		}
	}

	start := opts.Offset
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) PurgeHistory(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	kept := make([]history.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Timestamp.Before(before) {
			count++
		} else {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return count, nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
