package entity

import (
	"encoding/json"
	"time"
)

// OutboxEntry is a domain event appended in the same transaction as the state
// change it announces. Rows are never deleted; published_at marks shipment.
type OutboxEntry struct {
	ID          int64           `json:"id"`
	RoutingKey  string          `json:"routing_key"`
	Payload     json.RawMessage `json:"payload"`
	Properties  json.RawMessage `json:"properties"`
	Exchange    string          `json:"exchange"`
	CreatedAt   time.Time       `json:"created_at"`
	PublishedAt *time.Time      `json:"published_at,omitempty"`
}

type InboxStatus string

const (
	InboxReceived  InboxStatus = "received"
	InboxProcessed InboxStatus = "processed"
	InboxFailed    InboxStatus = "failed"
)

// InboxEntry is a durably recorded inbound message, unique on MessageID.
type InboxEntry struct {
	ID           int64           `json:"id"`
	MessageID    string          `json:"message_id"`
	RoutingKey   string          `json:"routing_key"`
	Payload      json.RawMessage `json:"payload"`
	Properties   json.RawMessage `json:"properties"`
	Status       InboxStatus     `json:"status"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`
}
