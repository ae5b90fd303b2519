package processing

import (
	"errors"
	"fmt"
)

// ErrEmptyAudio is returned when the audio payload is empty; detected
// locally, before any network call.
var ErrEmptyAudio = errors.New("empty audio payload")

// ErrAlreadyInProgress is the server-asserted single-flight violation:
// another transcription for this user is still running.
var ErrAlreadyInProgress = errors.New("a transcription is already in progress")

// codeInProgress is the error code the service sets on a 429 when the
// single-flight rule (not the quota) was violated.
const codeInProgress = "TRANSCRIPTION_IN_PROGRESS"

// defaultResetsAt is reported when a rate-limit response omits the reset
// time; the service quota resets daily.
const defaultResetsAt = "midnight UTC"

// RateLimitError reports quota exhaustion with the usage numbers the
// service returned.
type RateLimitError struct {
	Used     int
	Limit    int
	ResetsAt string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %d/%d transcriptions used, resets %s", e.Used, e.Limit, e.ResetsAt)
}
