package domain

import "time"

// JournalEntry is one write submitted by this client, as recorded locally.
type JournalEntry struct {
	ID          string // UUID (local tracking)
	Handle      TxHandle
	Kind        string
	AccountID   string
	Detail      string
	SubmittedAt time.Time
	Status      TxStatus
	Error       string
	FinishedAt  *time.Time
}
