// Package attendance folds raw attendance rows into per-subject tallies.
package attendance

import (
	"fmt"
	"strings"

	"github.com/araddon/dateparse"

	"github.com/trezcool/mahudhurio/core"
)

const dateLayout = "2006-01-02"

// SkipReason tells why a Row was not ingested.
type SkipReason string

const (
	SkipUnknownSubject SkipReason = "unknown subject"
	SkipInvalidDate    SkipReason = "invalid date"
	SkipInvalidStatus  SkipReason = "invalid status"
	SkipDuplicate      SkipReason = "duplicate record"
)

// Skip reports a Row that was left out. Row is its index in the ingested batch.
type Skip struct {
	Row    int        `json:"row"`
	Reason SkipReason `json:"reason"`
}

type Result struct {
	Added   int    `json:"added"`
	Skipped []Skip `json:"skipped"`
}

// DataError is returned when the catalog or the tallies handed to Ingest are malformed.
type DataError struct {
	Subject string
	Reason  string
}

func (err *DataError) Error() string {
	if err.Subject == "" {
		return "malformed attendance data: " + err.Reason
	}
	return fmt.Sprintf("malformed attendance data for subject %q: %s", err.Subject, err.Reason)
}

// NormalizeDate parses `s` and formats it as YYYY-MM-DD.
func NormalizeDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return "", false
	}
	return t.Format(dateLayout), true
}

func indexCatalog(catalog []Subject) (map[string]SubjectID, error) {
	index := make(map[string]SubjectID, len(catalog))
	for i, subj := range catalog {
		name := core.CleanString(subj.Name, true /* lower */)
		if subj.ID == "" {
			return nil, &DataError{Reason: fmt.Sprintf("subject #%d has no id", i)}
		}
		if name == "" {
			return nil, &DataError{Subject: string(subj.ID), Reason: "subject has no name"}
		}
		index[name] = subj.ID // a later duplicate name wins
	}
	return index, nil
}

// Ingest merges `rows` into `tallies` and returns the updated tallies.
//
// Rows are matched to the catalog by case-insensitive subject name. Rows with an unknown subject,
// a missing or unparseable date, a status other than present/absent, or an already ingested
// (subject, date, time slot) are skipped and reported in Result.Skipped.
// The given tallies are left untouched. A *DataError is returned if the catalog or the tallies are malformed,
// in which case nothing is applied.
func Ingest(tallies Tallies, rows []Row, catalog []Subject) (Tallies, Result, error) {
	index, err := indexCatalog(catalog)
	if err != nil {
		return nil, Result{}, err
	}
	for id, t := range tallies {
		if err := t.Validate(id); err != nil {
			return nil, Result{}, err
		}
	}

	out := make(Tallies, len(tallies))
	for id, t := range tallies {
		out[id] = t
	}

	var res Result
	keysBySubject := make(map[string]map[string]struct{})
	owned := make(map[string]bool) // records slices already copied

	skip := func(i int, reason SkipReason) {
		res.Skipped = append(res.Skipped, Skip{Row: i, Reason: reason})
	}

	for i, row := range rows {
		subjectID, ok := index[core.CleanString(row.Subject, true /* lower */)]
		if !ok {
			skip(i, SkipUnknownSubject)
			continue
		}
		date, ok := NormalizeDate(row.Date)
		if !ok {
			skip(i, SkipInvalidDate)
			continue
		}
		status := core.CleanString(row.Status, true /* lower */)
		if status != StatusPresent && status != StatusAbsent {
			skip(i, SkipInvalidStatus)
			continue
		}

		id := string(subjectID)
		tally := out[id]
		keys, ok := keysBySubject[id]
		if !ok {
			keys = tally.keySet()
			keysBySubject[id] = keys
		}

		key := MergeKey(subjectID, date, row.TimeSlot)
		if _, dup := keys[key]; dup {
			skip(i, SkipDuplicate)
			continue
		}

		if !owned[id] {
			records := make([]Entry, len(tally.Records), len(tally.Records)+len(rows)-i)
			copy(records, tally.Records)
			tally.Records = records
			owned[id] = true
		}
		tally.Total++
		if status == StatusPresent {
			tally.Attended++
		}
		tally.Records = append(tally.Records, Entry{Key: key, Status: status})
		out[id] = tally
		keys[key] = struct{}{}
		res.Added++
	}
	return out, res, nil
}
