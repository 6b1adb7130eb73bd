package ledger

import (
	"fmt"

	"github.com/stellar/go/amount"
)

// SeedAccount creates or tops up a native balance on the in-memory ledger.
// It is a no-op for other backends.
func SeedAccount(l Client, accountID, xlm string) error {
	mem, ok := l.(*inMemoryLedger)
	if !ok {
		return nil
	}
	stroops, err := amount.ParseInt64(xlm)
	if err != nil {
		return fmt.Errorf("seed amount: %w", err)
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	acc, exists := mem.accounts[accountID]
	if !exists {
		acc = &memAccount{seq: int64(mem.ledgerSeq) << 32, balances: map[string]int64{}}
		mem.accounts[accountID] = acc
	}
	acc.balances[nativeKey] += stroops
	return nil
}

// SetUnavailable makes every call on the in-memory ledger fail as if the
// network were unreachable.
func SetUnavailable(l Client, down bool) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.unavailable = down
	}
}

// AccountCount reports how many accounts exist on the in-memory ledger.
func AccountCount(l Client) int {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		return len(mem.accounts)
	}
	return 0
}
