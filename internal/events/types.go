// Package events defines versioned integration event payloads exchanged
// between the API, the notification worker, and the stream-triggered Lambda.
package events

import "time"

// AppointmentBookedV1 is emitted once per successfully created appointment.
type AppointmentBookedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Doctor        string    `json:"doctor"`
	QueueNumber   int       `json:"queue_number"`
	Source        string    `json:"source,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
