package ledger

// SeedBalance sets the balance of an account on the in-memory ledger. Other
// implementations are left untouched.
func SeedBalance(l Ledger, code string, amount int64) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.balances[code] = amount
	}
}
