package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WarningAlertMessage carries one critical spending warning to downstream
// notification consumers. It duplicates the warning fields instead of just an
// ID so consumers never need database access.
type WarningAlertMessage struct {
	MessageID string    `json:"message_id"`
	WarningID string    `json:"warning_id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Severity  string    `json:"severity"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Category  string    `json:"category,omitempty"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWarningAlertMessage stamps an alert with a fresh message ID. The warning
// ID stays deterministic so consumers can de-duplicate repeated alerts for
// the same condition.
func NewWarningAlertMessage(warningID string, year, month int, severity, warningType, title, message, category string, amount int64) *WarningAlertMessage {
	return &WarningAlertMessage{
		MessageID: uuid.NewString(),
		WarningID: warningID,
		Year:      year,
		Month:     month,
		Severity:  severity,
		Type:      warningType,
		Title:     title,
		Message:   message,
		Category:  category,
		Amount:    amount,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *WarningAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// WarningAlertMessageFromJSON creates a message from JSON bytes
func WarningAlertMessageFromJSON(data []byte) (*WarningAlertMessage, error) {
	var msg WarningAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
