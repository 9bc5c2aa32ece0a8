package appointments

import "time"

// Status represents the lifecycle state of an appointment.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// Valid reports whether s is one of the closed set of statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransitionTo enforces the appointment state machine:
// Pending -> {In Progress, Cancelled}; In Progress -> {Completed, Cancelled}.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	}
	return false
}

// Active reports whether the appointment still occupies its slot.
func (s Status) Active() bool {
	return s != StatusCancelled
}

// TimeSlots is the fixed set of bookable evening slots, 10 minutes apart.
var TimeSlots = []string{
	"07:00 PM",
	"07:10 PM",
	"07:20 PM",
	"07:30 PM",
	"07:40 PM",
	"07:50 PM",
	"08:00 PM",
	"08:10 PM",
	"08:20 PM",
	"08:30 PM",
	"08:40 PM",
	"08:50 PM",
}

// ValidSlot reports whether the given label is a bookable slot.
func ValidSlot(slot string) bool {
	for _, s := range TimeSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// DateLayout is the wire format for appointment dates.
const DateLayout = "2006-01-02"

// Appointment is a booked clinic visit.
type Appointment struct {
	ID          string `dynamodbav:"id" json:"id"`
	Name        string `dynamodbav:"name" json:"name"`
	Phone       string `dynamodbav:"phone" json:"phone"`
	Date        string `dynamodbav:"date" json:"date"`
	Time        string `dynamodbav:"time" json:"time"`
	Doctor      string `dynamodbav:"doctor" json:"doctor"`
	QueueNumber int    `dynamodbav:"queueNumber" json:"queueNumber"`
	Status      Status `dynamodbav:"status" json:"status"`
	Source      string `dynamodbav:"source,omitempty" json:"source,omitempty"`
	CreatedAt   string `dynamodbav:"createdAt" json:"createdAt"`
}

// BookingRequest is a prospective appointment submitted by a patient.
type BookingRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Source string `json:"source,omitempty"`
}

// QueueEntry is one row of the live queue projection.
type QueueEntry struct {
	QueueNumber int    `json:"queueNumber"`
	Name        string `json:"name"`
	Time        string `json:"time"`
	Doctor      string `json:"doctor"`
	Status      Status `json:"status"`
	NowServing  bool   `json:"nowServing"`
}

// QueueSnapshot is the derived view of today's active queue.
type QueueSnapshot struct {
	Date       string       `json:"date"`
	Entries    []QueueEntry `json:"entries"`
	NowServing *QueueEntry  `json:"nowServing,omitempty"`
	Waiting    int          `json:"waiting"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}
