package activity

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Report is a Flag activity against a post or comment. Two reason fields
// exist for cross-implementation compatibility: we send summary, Mastodon
// sends content. Both are accepted on receipt.
type Report struct {
	Context interface{}  `json:"@context,omitempty"`
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Actor   string       `json:"actor"`
	To      []string     `json:"to"`
	Object  ReportObject `json:"object"`
	Summary *string      `json:"summary,omitempty"`
	Content *string      `json:"content,omitempty"`
}

var ErrNoReason = errors.New("report has no reason")

// Reason returns the report reason from whichever field is populated.
func (r *Report) Reason() (string, error) {
	if r.Summary != nil && *r.Summary != "" {
		return *r.Summary, nil
	}
	if r.Content != nil && *r.Content != "" {
		return *r.Content, nil
	}
	return "", ErrNoReason
}

func NewReport(host, actorID, objectID, communityID, reason string) Report {
	return Report{
		Context: Context,
		Type:    FlagType,
		ID:      NewID(host, FlagType),
		Actor:   actorID,
		To:      []string{communityID},
		Object:  ReportObject{ID: objectID},
		Summary: &reason,
	}
}

// ReportObject tolerates the two report formats in the wild: a single
// object IRI, or an array of candidate URLs (Mastodon sends the reported
// user's id plus one or more post ids in one array).
type ReportObject struct {
	ID         string
	Candidates []string
}

func (o *ReportObject) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		o.ID = s
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		o.Candidates = list
		return nil
	}
	var m struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(b, &m); err != nil || m.ID == "" {
		return fmt.Errorf("unrecognized report object shape")
	}
	o.ID = m.ID
	return nil
}

func (o ReportObject) MarshalJSON() ([]byte, error) {
	if o.ID != "" {
		return json.Marshal(o.ID)
	}
	return json.Marshal(o.Candidates)
}
