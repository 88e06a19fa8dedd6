package tasks

import "time"

// Task is one pending question embedding: encode the question identified by
// (Dataset, QuestionIdx) with Model and store the vector.
type Task struct {
	Dataset     string
	QuestionIdx int
	Model       string
	Reason      string
	Attempts    int
	NextRunAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
