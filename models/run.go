package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type FetchRun struct {
	ID              int64      `json:"id" db:"id"`
	UUID            uuid.UUID  `json:"run_uuid" db:"run_uuid"`
	AgentKey        string     `json:"agent_key" db:"agent_key"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	ListingsFound   int        `json:"listings_found" db:"listings_found"`
	ListingsWritten int        `json:"listings_written" db:"listings_written"`
	ErrorsCount     int        `json:"errors_count" db:"errors_count"`
	OutputPath      string     `json:"output_path" db:"output_path"`
}

type FeedCount struct {
	RunID    int64  `json:"run_id" db:"run_id"`
	Feed     string `json:"feed" db:"feed"`
	RT       string `json:"rt" db:"rt"`
	Count    int    `json:"count" db:"count"`
	Optional bool   `json:"optional" db:"optional"`
	Failed   bool   `json:"failed" db:"failed"`
}
