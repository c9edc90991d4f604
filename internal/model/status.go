package model

import "fmt"

type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusRendering JobStatus = "RENDERING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
	StatusCancelled JobStatus = "CANCELLED"
)

var allowedTransitions = map[JobStatus]map[JobStatus]bool{
	StatusPending: {
		StatusPending:   true,
		StatusRendering: true,
		StatusFailed:    true, // scene missing, never started
		StatusCancelled: true,
	},
	StatusRendering: {
		StatusRendering: true,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	},
	StatusFailed: {
		StatusFailed:    true, // later frames of an already failed job
		StatusCancelled: true,
	},
	StatusCompleted: {
		StatusCompleted: true,
	},
	StatusCancelled: {
		StatusCancelled: true,
	},
}

func IsKnownStatus(status JobStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminal(status JobStatus) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

func CanTransition(from, to JobStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionStatus(statuses []JobStatus, index int, to JobStatus) error {
	if index < 0 || index >= len(statuses) {
		return fmt.Errorf("%w: job %d of %d", ErrIndexOutOfRange, index+1, len(statuses))
	}
	from := statuses[index]
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid job status transition: %q -> %q (job %d)", from, to, index+1)
	}
	statuses[index] = to
	return nil
}
