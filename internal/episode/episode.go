// Package episode defines the episodic memory data model.
//
// An Episode is the durable record of a single problem-solving session:
// what was asked (Intent), what was touched (SessionContext), how it
// ended (Outcome), and how trustworthy the system currently believes
// the record to be (Utility). Episodes are mutated in place by feedback,
// decay, propagation, and temporal credit; they are destroyed only by
// explicit pruning.
package episode

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors for episode validation.
var (
	ErrEmptyID        = errors.New("episode ID cannot be empty")
	ErrEmptyProject   = errors.New("episode project cannot be empty")
	ErrInvalidOutcome = errors.New("outcome must be 'success', 'partial' or 'failure'")
	ErrInvalidScore   = errors.New("utility score must be between 0.0 and 1.0")
)

// TaskType classifies what kind of work a session performed.
type TaskType string

const (
	TaskBugfix   TaskType = "bugfix"
	TaskFeature  TaskType = "feature"
	TaskRefactor TaskType = "refactor"
	TaskTest     TaskType = "test"
	TaskDocs     TaskType = "docs"
	TaskResearch TaskType = "research"
	TaskDebug    TaskType = "debug"
	TaskSetup    TaskType = "setup"
	TaskUnknown  TaskType = "unknown"
)

// OutcomeStatus is the terminal classification of a session.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailure OutcomeStatus = "failure"
)

// Intent captures what the session set out to do.
type Intent struct {
	// RawPrompt is the verbatim first request of the session.
	RawPrompt string `json:"raw_prompt"`

	// ExtractedIntent is an optional distilled one-line summary.
	ExtractedIntent string `json:"extracted_intent,omitempty"`

	// TaskType is the work classification.
	TaskType TaskType `json:"task_type"`

	// Domain holds free-form domain tags (e.g., "auth", "sql", "ci").
	Domain []string `json:"domain,omitempty"`
}

// SessionContext records what the session touched while working.
type SessionContext struct {
	FilesRead         []string      `json:"files_read,omitempty"`
	FilesModified     []string      `json:"files_modified,omitempty"`
	ToolsInvoked      []string      `json:"tools_invoked,omitempty"`
	ErrorsEncountered []ErrorRecord `json:"errors_encountered,omitempty"`
}

// ErrorRecord is a single error hit during a session and whether it was resolved.
type ErrorRecord struct {
	ErrorType  string `json:"error_type"`
	Message    string `json:"message"`
	Resolved   bool   `json:"resolved"`
	Resolution string `json:"resolution,omitempty"`
}

// Outcome records how the session ended.
type Outcome struct {
	Status    OutcomeStatus `json:"status"`
	CommitSHA string        `json:"commit_sha,omitempty"`
	PRNumber  int           `json:"pr_number,omitempty"`
}

// RetrievalRecord is one entry in an episode's append-only retrieval history.
//
// The most recent entry is the sole target of the next feedback update.
type RetrievalRecord struct {
	Timestamp time.Time `json:"timestamp"`

	// Project is the project that issued the retrieval, resolved by the
	// caller and threaded through explicitly (never inferred ambiently).
	Project string `json:"project"`

	// Query is the retrieval query text.
	Query string `json:"query"`

	// WasHelpful is nil until feedback arrives for this retrieval.
	WasHelpful *bool `json:"was_helpful,omitempty"`
}

// Episode is the unit of memory.
type Episode struct {
	ID string `json:"id"`

	// Version is the optimistic-concurrency stamp. Store implementations
	// compare it on update and reject stale writes.
	Version int `json:"version"`

	TimestampStart time.Time `json:"timestamp_start"`
	TimestampEnd   time.Time `json:"timestamp_end"`

	Project string         `json:"project"`
	Intent  Intent         `json:"intent"`
	Context SessionContext `json:"context"`
	Outcome Outcome        `json:"outcome"`
	Utility Utility        `json:"utility"`

	RetrievalHistory []RetrievalRecord `json:"retrieval_history,omitempty"`
}

// New creates an episode with a generated UUID and default values.
func New(project, rawPrompt string) *Episode {
	now := time.Now().UTC()
	return &Episode{
		ID:             uuid.New().String(),
		TimestampStart: now,
		TimestampEnd:   now,
		Project:        project,
		Intent: Intent{
			RawPrompt: rawPrompt,
			TaskType:  TaskUnknown,
		},
		Outcome: Outcome{Status: OutcomePartial},
	}
}

// Validate checks structural invariants of the episode.
func (e *Episode) Validate() error {
	if e.ID == "" {
		return ErrEmptyID
	}
	if e.Project == "" {
		return ErrEmptyProject
	}
	switch e.Outcome.Status {
	case OutcomeSuccess, OutcomePartial, OutcomeFailure:
	default:
		return ErrInvalidOutcome
	}
	if e.Utility.Score != nil && (*e.Utility.Score < 0.0 || *e.Utility.Score > 1.0) {
		return ErrInvalidScore
	}
	return nil
}

// Title returns the best short description of the episode.
func (e *Episode) Title() string {
	if e.Intent.ExtractedIntent != "" {
		return e.Intent.ExtractedIntent
	}
	return e.Intent.RawPrompt
}

// ShortID returns the first 8 characters of the episode ID.
func (e *Episode) ShortID() string {
	if len(e.ID) <= 8 {
		return e.ID
	}
	return e.ID[:8]
}

// LastActivity returns the later of the session end and the most recent
// retrieval. Decay measures inactivity from this point.
func (e *Episode) LastActivity() time.Time {
	if n := len(e.RetrievalHistory); n > 0 {
		if last := e.RetrievalHistory[n-1].Timestamp; last.After(e.TimestampEnd) {
			return last
		}
	}
	return e.TimestampEnd
}

// RecordRetrieval appends a retrieval-history entry and increments the
// retrieval counter. Retrieval is itself an observation: it changes
// future scoring.
func (e *Episode) RecordRetrieval(at time.Time, project, query string) {
	e.RetrievalHistory = append(e.RetrievalHistory, RetrievalRecord{
		Timestamp: at,
		Project:   project,
		Query:     query,
	})
	e.Utility.RetrievalCount++
}

// ApplyFeedback marks the most recent retrieval entry with the given
// verdict and updates the utility counters. helpful == nil means mixed
// feedback: the entry is stamped but no counter moves.
//
// Feedback is deliberately permissive: it is accepted even when the
// retrieval history is empty, so helpful_count may exceed
// retrieval_count for records fed back out of band.
func (e *Episode) ApplyFeedback(helpful *bool) {
	if n := len(e.RetrievalHistory); n > 0 {
		e.RetrievalHistory[n-1].WasHelpful = helpful
	}
	if helpful != nil && *helpful {
		e.Utility.HelpfulCount++
	}
	score := e.Utility.CalculateScore()
	e.Utility.Score = &score
}

// SharesTag reports whether the two episodes have at least one domain
// tag in common (case-insensitive).
func (e *Episode) SharesTag(other *Episode) bool {
	for _, a := range e.Intent.Domain {
		for _, b := range other.Intent.Domain {
			if strings.EqualFold(a, b) {
				return true
			}
		}
	}
	return false
}

// SearchText builds the text surrogate used when querying the similarity
// oracle on behalf of this episode: intent, domain tags and task type.
func (e *Episode) SearchText() string {
	parts := []string{e.Intent.RawPrompt}
	if e.Intent.ExtractedIntent != "" {
		parts = append(parts, e.Intent.ExtractedIntent)
	}
	parts = append(parts, strings.Join(e.Intent.Domain, " "), string(e.Intent.TaskType))
	return strings.TrimSpace(strings.Join(parts, " "))
}

// OverlapText builds the normalized text surrogate used for word-set
// overlap comparisons (diversity re-ranking and the text fallback
// oracle): intent, tags and modified files, lowercased.
func (e *Episode) OverlapText() string {
	return strings.ToLower(strings.TrimSpace(strings.Join([]string{
		e.Intent.RawPrompt,
		e.Intent.ExtractedIntent,
		strings.Join(e.Intent.Domain, " "),
		strings.Join(e.Context.FilesModified, " "),
	}, " ")))
}
