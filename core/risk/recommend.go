package risk

import (
	"fmt"

	"github.com/trezcool/mahudhurio/core/attendance"
)

const (
	maxClassesNeeded = 100
	maxSafeBunks     = 50
	decliningTrend   = -2.0
)

// recommend lists what to do, most urgent first.
func (p *Projector) recommend(tally attendance.Tally, current, projected, trend float64) []Recommendation {
	recs := make([]Recommendation, 0, 3)

	if current < p.Threshold {
		n := ClassesNeeded(tally.Attended, tally.Total, p.Threshold)
		recs = append(recs, Recommendation{
			Type: RecommendationUrgent,
			Icon: "exclamation-triangle",
			Text: fmt.Sprintf("Attend next %d classes without fail to reach %g%%", n, p.Threshold),
		})
	}

	if projected < p.Threshold {
		recs = append(recs, Recommendation{
			Type: RecommendationWarning,
			Icon: "calendar-x",
			Text: fmt.Sprintf("Projected to fall below %g%% - avoid further absences", p.Threshold),
		})
	}

	if trend < decliningTrend {
		recs = append(recs, Recommendation{
			Type: RecommendationWarning,
			Icon: "graph-down",
			Text: "Declining trend detected - improve attendance immediately",
		})
	}

	if current >= p.Threshold && projected >= p.Threshold {
		if bunks := SafeBunks(tally.Attended, tally.Total, p.Threshold); bunks > 0 {
			recs = append(recs, Recommendation{
				Type: RecommendationSuccess,
				Icon: "check-circle",
				Text: fmt.Sprintf("You can safely miss %d more class(es)", bunks),
			})
		} else {
			recs = append(recs, Recommendation{
				Type: RecommendationInfo,
				Icon: "info-circle",
				Text: "Maintain current attendance to stay above threshold",
			})
		}
	}
	return recs
}

// ClassesNeeded returns the number of consecutive classes to attend to reach `target` percent (at most 100).
func ClassesNeeded(attended, total int, target float64) int {
	n := 0
	for ; n < maxClassesNeeded; n++ {
		if float64(attended+n)/float64(total+n)*100 >= target {
			return n
		}
	}
	return n
}

// SafeBunks returns the number of classes that can be missed while staying at or above `target` percent (at most 50).
func SafeBunks(attended, total int, target float64) int {
	b := 0
	for ; b < maxSafeBunks; b++ {
		if float64(attended)/float64(total+b+1)*100 < target {
			return b
		}
	}
	return b
}
