package model

import "time"

// Incident status constants
const (
	IncidentOpen     = "open"
	IncidentActive   = "active"
	IncidentResolved = "resolved"
)

// Incident is the dispatch incident a transcript belongs to
type Incident struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	Date   time.Time `json:"date"`
	Units  []string  `json:"units,omitempty"`
	Status string    `json:"status"`
	Notes  string    `json:"notes,omitempty"`
}

// Transcript is the recorded incident communication under audit
type Transcript struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	Text       string    `json:"text"`
	Source     string    `json:"source,omitempty"` // radio, phone, cad
	Incident   *Incident `json:"incident,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IncidentContext is the slice of incident data handed unchanged to every
// category evaluation
type IncidentContext struct {
	Type  string    `json:"type"`
	Date  time.Time `json:"date"`
	Units []string  `json:"units,omitempty"`
	Notes string    `json:"notes,omitempty"`
}
