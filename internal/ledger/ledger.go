package ledger

import "sync"

// Ledger remembers which listings already have a visit request in this
// session. Entries only ever go from false to true.
type Ledger struct {
	mu   sync.RWMutex
	sent map[string]bool
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{sent: make(map[string]bool)}
}

// Seed marks every id as requested, typically from the backend's list of
// the user's existing requests
func (l *Ledger) Seed(ids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			l.sent[id] = true
		}
	}
}

// HasPendingOrSentRequest reports whether a visit was already requested for id
func (l *Ledger) HasPendingOrSentRequest(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.sent[id]
}

// MarkSent records a successful request. Repeated calls are no-ops.
func (l *Ledger) MarkSent(id string) {
	if id == "" {
		return
	}
	l.mu.Lock()
	l.sent[id] = true
	l.mu.Unlock()
}

// Len returns the number of requested listings
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.sent)
}
