package ledger

// SeedWallet is a test helper that sets the balance for a wallet when using
// the in-memory store.
func SeedWallet(s Store, userID string, balance int64) {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.wallets[userID] = &Wallet{OwnerID: userID, Balance: balance, SchemaVersion: 1}
	}
}

// CreatedEvents returns the change notifications emitted by the in-memory
// store, in insertion order.
func CreatedEvents(s Store) []CreatedEvent {
	if mem, ok := s.(*memoryStore); ok {
		mem.mu.RLock()
		defer mem.mu.RUnlock()
		out := make([]CreatedEvent, len(mem.events))
		copy(out, mem.events)
		return out
	}
	return nil
}
