package core

import "time"

type EventType string

const (
	EventTransactionCreated EventType = "transaction.created"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventAccountDeleted     EventType = "account.deleted"

	// EventCategoryChanged carries only the owner; labels and colors of
	// derived views may be stale.
	EventCategoryChanged EventType = "category.changed"
)

// LedgerEvent describes a committed ledger mutation.
type LedgerEvent struct {
	Type          EventType `json:"type"`
	OwnerID       string    `json:"ownerId"`
	TransactionID int64     `json:"transactionId,omitempty"`
	AccountID     string    `json:"accountId,omitempty"`
	Month         string    `json:"month,omitempty"`
	At            time.Time `json:"at"`
}
