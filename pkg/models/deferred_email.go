package models

import "time"

// DeferredEmailStatus tracks the lifecycle of a scheduled email.
type DeferredEmailStatus string

const (
	DeferredEmailPending   DeferredEmailStatus = "pending"
	DeferredEmailSent      DeferredEmailStatus = "sent"
	DeferredEmailFailed    DeferredEmailStatus = "failed"
	DeferredEmailCancelled DeferredEmailStatus = "cancelled"
)

// DeferredEmail is a row created when an email task is asked to fire later
// (spec §3, §4.7). It lives in the State Store, not the Queue.
type DeferredEmail struct {
	ID             string              `json:"id"`
	OwningRunID    string              `json:"owningRunId"`
	OwningNodeID   string              `json:"owningNodeId"`
	SenderIdentity string              `json:"senderIdentity"`
	Recipient      string              `json:"recipient"`
	Subject        string              `json:"subject"`
	Body           string              `json:"body"`
	FireAt         time.Time           `json:"fireAt"`
	Status         DeferredEmailStatus `json:"status"`
	SentAt         *time.Time          `json:"sentAt,omitempty"`
	Error          string              `json:"error,omitempty"`
}
