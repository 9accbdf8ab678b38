package domain

import "time"

type ActivityType string

const (
	ActivityAdd       ActivityType = "add"
	ActivityRemove    ActivityType = "remove"
	ActivityEmergency ActivityType = "emergency"
)

type ActivityItem struct {
	DocumentNumber string     `json:"dni"`
	TicketCode     TicketCode `json:"ticket"`
	Location       string     `json:"location,omitempty"`
	Description    string     `json:"description,omitempty"`
	IsEmergency    bool       `json:"isEmergency,omitempty"`
}

// Activity is a local, append-only log entry. It never takes part in reconciliation.
type Activity struct {
	ID        string       `json:"id"`
	Type      ActivityType `json:"type"`
	LockerID  *int         `json:"lockerId,omitempty"`
	Item      ActivityItem `json:"item"`
	Timestamp time.Time    `json:"timestamp"`
}

type EmergencyItem struct {
	DocumentNumber string     `json:"dni"`
	TicketCode     TicketCode `json:"ticket"`
	Location       string     `json:"location"`
	Description    string     `json:"description"`
	Timestamp      time.Time  `json:"timestamp"`
}
