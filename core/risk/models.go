package risk

import (
	"fmt"

	"github.com/trezcool/mahudhurio/core/attendance"
)

// Level is the attendance risk level of a subject.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Color returns the UI severity of the Level.
func (l Level) Color() string {
	switch l {
	case LevelHigh:
		return "danger"
	case LevelMedium:
		return "warning"
	default:
		return "success"
	}
}

// Recommendation types
const (
	RecommendationUrgent  = "urgent"
	RecommendationWarning = "warning"
	RecommendationSuccess = "success"
	RecommendationInfo    = "info"
)

type Recommendation struct {
	Type string `json:"type"`
	Icon string `json:"icon"`
	Text string `json:"text"`
}

// Assessment is the risk analysis of one subject. It is recomputed on every query.
type Assessment struct {
	SubjectID       attendance.SubjectID
	SubjectName     string
	Total           int
	Attended        int
	Current         float64 // attended percentage
	Trend           float64 // percentage points, recent window vs overall
	DaysLeft        int
	FutureClasses   int
	Projected       float64 // percentage at the end of the horizon
	RecentAbsences  int
	Score           float64 // risk probability in [0, 1]
	Level           Level
	Recommendations []Recommendation
}

// NoDataError is returned when assessing a subject without any recorded class.
type NoDataError struct {
	SubjectID attendance.SubjectID
}

func (err *NoDataError) Error() string {
	return fmt.Sprintf("no attendance recorded for subject %q", err.SubjectID)
}
