package appointments

import (
	"sort"
	"time"
)

// BuildSnapshot derives the live queue view from a date's records: active
// statuses only, ordered by queue number, with the first In-Progress entry
// surfaced as "now serving".
func BuildSnapshot(date string, records []Appointment, at time.Time) *QueueSnapshot {
	snapshot := &QueueSnapshot{
		Date:      date,
		Entries:   []QueueEntry{},
		UpdatedAt: at,
	}

	for _, appt := range records {
		if appt.Status != StatusPending && appt.Status != StatusInProgress {
			continue
		}
		entry := QueueEntry{
			QueueNumber: appt.QueueNumber,
			Name:        appt.Name,
			Time:        appt.Time,
			Doctor:      appt.Doctor,
			Status:      appt.Status,
		}
		snapshot.Entries = append(snapshot.Entries, entry)
	}
	sort.Slice(snapshot.Entries, func(i, j int) bool {
		return snapshot.Entries[i].QueueNumber < snapshot.Entries[j].QueueNumber
	})

	for i := range snapshot.Entries {
		if snapshot.Entries[i].Status == StatusInProgress {
			snapshot.Entries[i].NowServing = true
			serving := snapshot.Entries[i]
			snapshot.NowServing = &serving
			break
		}
	}
	for _, entry := range snapshot.Entries {
		if entry.Status == StatusPending {
			snapshot.Waiting++
		}
	}
	return snapshot
}
