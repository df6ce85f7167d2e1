package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Signalement events
	EventSignalementUrgencyUpdated = "signalement.urgency.updated"
	EventSignalementAutoVerified   = "signalement.auto_verified"

	// Rotation events
	EventRotationImported = "rotation.imported"
)

// Exchange names
const (
	ExchangeStockEvents = "stock.events"
	ExchangeDeadLetter  = "dlx.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Signalement Events

// SignalementUrgencyUpdatedEvent is published after the urgency of a signalement was recomputed
type SignalementUrgencyUpdatedEvent struct {
	SignalementID          string  `json:"signalement_id"`
	ProductCode            string  `json:"product_code"`
	Urgency                string  `json:"urgency"`
	SellThroughProbability float64 `json:"sell_through_probability"`
	Status                 string  `json:"status"`
	PreviousStatus         string  `json:"previous_status"`
	RotationFound          bool    `json:"rotation_found"`
}

// SignalementAutoVerifiedEvent is published when a pending signalement moved to TO_VERIFY
type SignalementAutoVerifiedEvent struct {
	SignalementID          string  `json:"signalement_id"`
	ProductCode            string  `json:"product_code"`
	SellThroughProbability float64 `json:"sell_through_probability"`
	MonthsRemaining        int     `json:"months_remaining"`
}

// Rotation Events

// RotationImportedEvent is published after a bulk rotation import
type RotationImportedEvent struct {
	Imported int `json:"imported"`
	Rejected int `json:"rejected"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
