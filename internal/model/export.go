package model

import "time"

// Exploration is a finished simulation run, recorded when feedback is given.
type Exploration struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	DisplayName string             `json:"display_name"`
	Stream      string             `json:"stream"`
	Feedback    Feedback           `json:"feedback"`
	Answers     []string           `json:"answers"`
	Transcript  []ConversationTurn `json:"transcript"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ExplorationExport is the top-level JSON structure written by `compass export`.
type ExplorationExport struct {
	ExportedAt   time.Time      `json:"exported_at"`
	Stream       string         `json:"stream,omitempty"`
	Count        int            `json:"count"`
	Positive     int            `json:"positive"`
	Negative     int            `json:"negative"`
	Explorations []Exploration  `json:"explorations"`
	ByStream     map[string]int `json:"by_stream"`
}
