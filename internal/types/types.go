// Package types defines core data structures for the support mail assistant.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Status is the workflow cursor of a record.
type Status string

// Status constants.
const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusResolved  Status = "resolved"
)

// ValidStatuses is the set of allowed status values, in lifecycle order.
var ValidStatuses = []Status{StatusPending, StatusProcessed, StatusResolved}

// transitions lists the only forward moves a record may make.
var transitions = map[Status]Status{
	StatusPending:   StatusProcessed,
	StatusProcessed: StatusResolved,
}

// IsValid checks if a status value is one of the known states.
func (s Status) IsValid() bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether a record in status s may move to status to.
func (s Status) CanTransition(to Status) bool {
	next, ok := transitions[s]
	return ok && next == to
}

// ParseStatus converts a string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("invalid status %q (must be: pending, processed, resolved)", s)
	}
	return st, nil
}

// Sentiment is the tone of an incoming email.
type Sentiment string

// Sentiment constants.
const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// ValidSentiments is the set of allowed sentiment values.
var ValidSentiments = []Sentiment{SentimentPositive, SentimentNegative, SentimentNeutral}

// ParseSentiment matches s case-insensitively against the known sentiments.
func ParseSentiment(s string) (Sentiment, bool) {
	for _, v := range ValidSentiments {
		if strings.EqualFold(strings.TrimSpace(s), string(v)) {
			return v, true
		}
	}
	return "", false
}

// Priority is the urgency assigned to an email.
type Priority string

// Priority constants.
const (
	PriorityUrgent    Priority = "Urgent"
	PriorityNotUrgent Priority = "Not urgent"
)

// ValidPriorities is the set of allowed priority values.
var ValidPriorities = []Priority{PriorityUrgent, PriorityNotUrgent}

// ParsePriority matches s case-insensitively against the known priorities.
// "Not-urgent" and "not_urgent" are accepted as "Not urgent".
func ParsePriority(s string) (Priority, bool) {
	norm := strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(s))
	norm = strings.Join(strings.Fields(norm), " ")
	for _, v := range ValidPriorities {
		if strings.EqualFold(norm, string(v)) {
			return v, true
		}
	}
	return "", false
}

// EmailRecord is one tracked support email and its derived metadata.
// The analysis fields are nil while the record is pending. contact_info is
// always encoded so an analyzed record with no contacts shows {}.
type EmailRecord struct {
	ID                int64             `json:"id"`
	ExternalID        string            `json:"external_id"`
	Sender            string            `json:"sender"`
	Subject           string            `json:"subject"`
	Body              string            `json:"body"`
	ReceivedAt        time.Time         `json:"received_at"`
	Status            Status            `json:"status"`
	Sentiment         *Sentiment        `json:"sentiment,omitempty"`
	Priority          *Priority         `json:"priority,omitempty"`
	CustomerRequest   *string           `json:"customer_request,omitempty"`
	ContactInfo       map[string]string `json:"contact_info"`
	GeneratedResponse *string           `json:"generated_response,omitempty"`
}

// Analyzed reports whether all five analysis fields are present.
func (r *EmailRecord) Analyzed() bool {
	return r.Sentiment != nil && r.Priority != nil && r.CustomerRequest != nil &&
		r.ContactInfo != nil && r.GeneratedResponse != nil
}

// Content is the text handed to the model for a record.
func (r *EmailRecord) Content() string {
	return fmt.Sprintf("Subject: %s\n\n%s", r.Subject, r.Body)
}

// Extraction is the validated output of the structured extraction call.
type Extraction struct {
	Sentiment       Sentiment         `json:"sentiment"`
	Priority        Priority          `json:"priority"`
	CustomerRequest string            `json:"customer_request"`
	ContactInfo     map[string]string `json:"contact_info"`
}

// Analysis is the full set of fields written when a record becomes processed.
type Analysis struct {
	Extraction
	GeneratedResponse string `json:"generated_response"`
}

// IngestResult holds the counts of a single ingestion cycle.
type IngestResult struct {
	Listed     int       `json:"listed"`
	Inserted   int       `json:"inserted"`
	Duplicates int       `json:"duplicates"`
	BadDate    int       `json:"bad_date"`
	Filtered   int       `json:"filtered"`
	PolledAt   time.Time `json:"polled_at"`
}

// AnalyzeResult holds the counts of a single analyzer pass.
type AnalyzeResult struct {
	RunID     string `json:"run_id"`
	Pending   int    `json:"pending"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Fallback  int    `json:"fallback"`
	Skipped   int    `json:"skipped"`
}

// Message is an inbound mail message as returned by a mailbox provider.
// Date is the raw header value; parsing it is the ingestor's job.
type Message struct {
	ID      string
	From    string
	Subject string
	Date    string
	Body    string
}

// SubjectFilter selects actionable messages by subject keyword.
type SubjectFilter struct {
	Keywords []string
}

// DefaultKeywords are the subject words that mark a support request.
var DefaultKeywords = []string{"Support", "Query", "Request", "Help"}

// Match reports whether subject contains any keyword, ignoring case.
// An empty filter matches everything.
func (f SubjectFilter) Match(subject string) bool {
	if len(f.Keywords) == 0 {
		return true
	}
	s := strings.ToLower(subject)
	for _, k := range f.Keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return true
		}
	}
	return false
}
