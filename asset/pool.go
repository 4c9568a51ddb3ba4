// Package asset provides the multi-asset balance pool shared by the protocol
// treasury, platform treasuries, and account escrow.
//
// A Pool maps asset-type identifiers to aggregated balances. Deposits merge
// into the existing entry for the asset key; withdrawals always remove the
// entire entry. Partial withdrawal is unsupported; callers that need it
// withdraw and re-deposit the remainder.
package asset

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xraph/tollgate/types"
)

// Pool is a mapping from asset-type identifier to a non-negative balance.
// Pool is not safe for concurrent use; stores serialize access around it.
type Pool struct {
	balances map[string]int64
}

// NewPool creates an empty Pool.
func NewPool() *Pool {
	return &Pool{balances: make(map[string]int64)}
}

// Deposit merges amount into the balance under assetKey. If the key is
// absent the entry is created; an existing entry is increased, never split
// or duplicated. Panics on a negative amount (caller-validated upstream).
func (p *Pool) Deposit(assetKey string, amount int64) {
	if amount < 0 {
		panic(fmt.Sprintf("asset: negative deposit %d for %q", amount, assetKey))
	}
	if p.balances == nil {
		p.balances = make(map[string]int64)
	}
	p.balances[strings.ToLower(assetKey)] += amount
}

// DepositFunds merges a Funds value into the pool.
func (p *Pool) DepositFunds(f types.Funds) {
	p.Deposit(f.Asset, f.Amount)
}

// Withdraw removes and returns the full balance under assetKey.
// The second return value is false if no entry exists for the key.
func (p *Pool) Withdraw(assetKey string) (int64, bool) {
	key := strings.ToLower(assetKey)
	amount, ok := p.balances[key]
	if !ok {
		return 0, false
	}
	delete(p.balances, key)
	return amount, true
}

// Balance returns the balance under assetKey, zero if absent.
func (p *Pool) Balance(assetKey string) int64 {
	return p.balances[strings.ToLower(assetKey)]
}

// Has reports whether an entry exists for assetKey.
func (p *Pool) Has(assetKey string) bool {
	_, ok := p.balances[strings.ToLower(assetKey)]
	return ok
}

// Len returns the number of distinct asset entries.
func (p *Pool) Len() int { return len(p.balances) }

// IsEmpty reports whether the pool holds no entries.
func (p *Pool) IsEmpty() bool { return len(p.balances) == 0 }

// Assets returns the asset keys held by the pool, sorted.
func (p *Pool) Assets() []string {
	keys := make([]string, 0, len(p.balances))
	for k := range p.balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Balances returns a snapshot of all entries as Funds values, sorted by asset.
func (p *Pool) Balances() []types.Funds {
	out := make([]types.Funds, 0, len(p.balances))
	for _, key := range p.Assets() {
		out = append(out, types.Funds{Amount: p.balances[key], Asset: key})
	}
	return out
}

// Drain removes every entry and returns them as Funds values, sorted by asset.
func (p *Pool) Drain() []types.Funds {
	out := p.Balances()
	p.balances = make(map[string]int64)
	return out
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	c := NewPool()
	for k, v := range p.balances {
		c.balances[k] = v
	}
	return c
}

// Total returns the sum of all balances. Only meaningful when the caller
// knows every entry shares a unit of account.
func (p *Pool) Total() int64 {
	var total int64
	for _, v := range p.balances {
		total += v
	}
	return total
}

// MarshalJSON implements json.Marshaler. Pools serialize as a flat
// asset→balance object so store backends can persist them directly.
func (p *Pool) MarshalJSON() ([]byte, error) {
	if p.balances == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.balances)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Pool) UnmarshalJSON(data []byte) error {
	balances := make(map[string]int64)
	if err := json.Unmarshal(data, &balances); err != nil {
		return err
	}
	p.balances = make(map[string]int64, len(balances))
	for k, v := range balances {
		if v < 0 {
			return fmt.Errorf("asset: negative balance %d for %q", v, k)
		}
		p.balances[strings.ToLower(k)] = v
	}
	return nil
}
