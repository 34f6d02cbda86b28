package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
)

// SubjectID identifies a Subject. IDs are compared as strings; JSON numbers are accepted as well.
type SubjectID string

func (id *SubjectID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = SubjectID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("subject id must be a string or a number: %s", data)
	}
	*id = SubjectID(n.String())
	return nil
}

func (id SubjectID) String() string { return string(id) }

type Subject struct {
	ID   SubjectID `json:"id"`
	Name string    `json:"name"`
}

// Row is a raw attendance row, as found in an uploaded sheet or a form submission.
type Row struct {
	Subject  string `json:"subject"`
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
	Status   string `json:"status"`
}

// Entry is an ingested Row.
type Entry struct {
	Key    string `json:"key"`
	Status string `json:"status"`
}

func (e Entry) Present() bool { return e.Status == StatusPresent }

// Tally is the running attendance of a Subject.
// len(Records) == Total and no two Records share the same Key.
type Tally struct {
	Total    int     `json:"total"`
	Attended int     `json:"attended"`
	Records  []Entry `json:"records"`
}

// Percentage returns the attended percentage, 0 when no classes were recorded.
func (t Tally) Percentage() float64 {
	if t.Total == 0 {
		return 0
	}
	return float64(t.Attended) / float64(t.Total) * 100
}

// Recent returns the last k Records (fewer if there are not enough).
func (t Tally) Recent(k int) []Entry {
	if k <= 0 {
		return nil
	}
	if len(t.Records) <= k {
		return t.Records
	}
	return t.Records[len(t.Records)-k:]
}

func (t Tally) keySet() map[string]struct{} {
	keys := make(map[string]struct{}, len(t.Records))
	for _, rec := range t.Records {
		keys[rec.Key] = struct{}{}
	}
	return keys
}

// CheckCounts returns a *DataError if the counts of the Tally of subject `subjectID` are negative
// or more classes were attended than recorded.
func (t Tally) CheckCounts(subjectID string) error {
	switch {
	case t.Total < 0 || t.Attended < 0:
		return &DataError{Subject: subjectID, Reason: "negative counts"}
	case t.Attended > t.Total:
		return &DataError{Subject: subjectID, Reason: "attended exceeds total"}
	}
	return nil
}

// Validate checks all the invariants of the Tally of subject `subjectID`, returning a *DataError if one is broken.
func (t Tally) Validate(subjectID string) error {
	if err := t.CheckCounts(subjectID); err != nil {
		return err
	}
	switch {
	case t.Records == nil && t.Total > 0:
		return &DataError{Subject: subjectID, Reason: "records are missing"}
	case len(t.Records) != t.Total:
		return &DataError{Subject: subjectID, Reason: fmt.Sprintf("%d records for %d classes", len(t.Records), t.Total)}
	}
	if len(t.keySet()) != len(t.Records) {
		return &DataError{Subject: subjectID, Reason: "duplicate record keys"}
	}
	return nil
}

// Tallies maps subject IDs to their Tally.
type Tallies map[string]Tally

// MergeKey returns the idempotence key of an attendance row.
func MergeKey(subjectID SubjectID, date, timeSlot string) string {
	return fmt.Sprintf("%s-%s-%s", subjectID, date, timeSlot)
}
