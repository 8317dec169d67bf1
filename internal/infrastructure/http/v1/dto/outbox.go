package dto

import (
	"time"

	"ytsoob/internal/messaging/outbox"
)

// OutboxRecordResponse is an outbox record for operators. The payload is omitted.
type OutboxRecordResponse struct {
	ID            string     `json:"id"`
	MessageType   string     `json:"messageType"`
	DeliveryType  string     `json:"deliveryType"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retryCount"`
	LastError     *string    `json:"lastError,omitempty"`
	CorrelationID *string    `json:"correlationId,omitempty"`
	Compressed    bool       `json:"compressed"`
	CreatedAt     time.Time  `json:"createdAt"`
	ProcessedAt   *time.Time `json:"processedAt,omitempty"`
}

// FromOutboxRecord maps a record.
func FromOutboxRecord(r *outbox.Record) OutboxRecordResponse {
	return OutboxRecordResponse{
		ID:            r.ID.String(),
		MessageType:   r.MessageType,
		DeliveryType:  string(r.DeliveryType),
		Status:        string(r.Status),
		RetryCount:    r.RetryCount,
		LastError:     r.LastError,
		CorrelationID: r.CorrelationID,
		Compressed:    r.Compressed,
		CreatedAt:     r.CreatedAt,
		ProcessedAt:   r.ProcessedAt,
	}
}
