// Package profile manages the app data of each user and the features computed from it.
package profile

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/study"
)

// well-known keys of Data
const (
	KeySubjects      = "subjects"
	KeyAttendance    = "attendanceData"
	KeyStudySessions = "studySessions"
	KeyTimetable     = "timetable"
)

// Data is the app data of a user: a JSON object saved and returned verbatim.
// Well-known keys are decoded on demand, unknown keys are preserved.
type Data map[string]json.RawMessage

func (d Data) decode(key string, v interface{}) error {
	raw, ok := d[key]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &attendance.DataError{Reason: "malformed " + key + ": " + err.Error()}
	}
	return nil
}

func (d Data) Subjects() ([]attendance.Subject, error) {
	var subjects []attendance.Subject
	err := d.decode(KeySubjects, &subjects)
	return subjects, err
}

// Tallies decodes the attendance data, rejecting tallies with inconsistent counts.
func (d Data) Tallies() (attendance.Tallies, error) {
	tallies := attendance.Tallies{}
	if err := d.decode(KeyAttendance, &tallies); err != nil {
		return nil, err
	}
	for id, t := range tallies {
		if err := t.CheckCounts(id); err != nil {
			return nil, err
		}
	}
	return tallies, nil
}

func (d Data) StudySessions() ([]study.Session, error) {
	var sessions []study.Session
	err := d.decode(KeyStudySessions, &sessions)
	return sessions, err
}

// withTallies returns a copy of `d` holding `tallies` as attendance data.
func (d Data) withTallies(tallies attendance.Tallies) (Data, error) {
	raw, err := json.Marshal(tallies)
	if err != nil {
		return nil, errors.Wrap(err, "encoding attendance data")
	}
	out := make(Data, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	out[KeyAttendance] = raw
	return out, nil
}

// Bar is one bar of the attendance chart.
type Bar struct {
	Label      string
	Percentage float64
}

// Plotter renders the attendance chart as a PNG image.
type Plotter interface {
	PlotAttendance(bars []Bar) ([]byte, error)
}

// StudyPlan is the study recommendation of every subject and the resulting weekly schedule.
type StudyPlan struct {
	Subjects []study.SubjectPlan
	Schedule []study.Day
}
