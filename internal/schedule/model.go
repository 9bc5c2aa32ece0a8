package schedule

import "time"

// WeeklyHoliday is the fixed weekly closing day. It is a standing rule, not
// a stored record: Sundays are never bookable regardless of leave state.
const WeeklyHoliday = time.Sunday

// LeaveRecord marks the doctor unavailable for a single date. Presence of a
// record means closed; absence means open.
type LeaveRecord struct {
	Date      string `dynamodbav:"date" json:"date"`
	Message   string `dynamodbav:"message" json:"message"`
	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"`
}

// DayStatus is the legacy "today" on/off toggle. It is kept for the admin
// switch but per-date leave records are authoritative: the toggle writes
// through to today's leave record so the two can never disagree.
type DayStatus struct {
	ID      string `dynamodbav:"id" json:"-"`
	OnLeave bool   `dynamodbav:"isOnLeave" json:"isOnLeave"`
	Message string `dynamodbav:"message" json:"message"`
}

// DefaultLeaveMessage is used when the admin sets leave without a message.
const DefaultLeaveMessage = "Doctor on leave"

const dayStatusID = "today"
