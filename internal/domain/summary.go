package domain

import "time"

// RunSummary reports what one pipeline run did.
type RunSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Discovered int
	Published  int
	Failed     int
	Skipped    int
	Paywalled  int
	Resumed    int
}
