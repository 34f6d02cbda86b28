// Package risk classifies attendance risk, projects end-of-term attendance and recommends what to do about it.
package risk

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
)

const (
	DefaultThreshold = 75.0
	DefaultWindow    = 10

	highRiskBelow   = 70.0
	scoreThreshold  = 0.3
	minTrendRecords = 3
	daysPerClass    = 3

	improvingRate = 0.9 // assumed attendance of future classes when trend >= 0
	decliningRate = 0.7
)

// Projector assesses attendance risk. The zero value is not usable, see NewProjector.
type Projector struct {
	Scorer    Scorer
	Threshold float64 // minimum required attendance percentage
	Window    int     // number of recent records used for the trend
}

func NewProjector(scorer Scorer) *Projector {
	return &Projector{
		Scorer:    scorer,
		Threshold: DefaultThreshold,
		Window:    DefaultWindow,
	}
}

// Assess computes the risk Assessment of a subject over the next `daysLeft` days.
// It fails with a *NoDataError if no class was recorded for the subject,
// and with an *attendance.DataError if its counts are inconsistent.
func (p *Projector) Assess(subject attendance.Subject, tally attendance.Tally, daysLeft int) (Assessment, error) {
	if err := tally.CheckCounts(string(subject.ID)); err != nil {
		return Assessment{}, err
	}
	if tally.Total == 0 {
		return Assessment{}, &NoDataError{SubjectID: subject.ID}
	}

	current := tally.Percentage()

	recent := tally.Recent(p.Window)
	var presents, absences int
	for _, rec := range recent {
		switch rec.Status {
		case attendance.StatusPresent:
			presents++
		case attendance.StatusAbsent:
			absences++
		}
	}
	var trend float64
	if len(recent) >= minTrendRecords {
		trend = float64(presents)/float64(len(recent))*100 - current
	}

	projected := Project(current, tally.Total, trend, daysLeft)
	score := p.Scorer.Score(Features{
		Current:        current,
		Trend:          trend,
		DaysLeft:       float64(daysLeft),
		RecentAbsences: float64(absences),
	})

	var level Level
	switch {
	case current < highRiskBelow:
		level = LevelHigh
	case current < p.Threshold:
		level = LevelMedium
	case score > scoreThreshold:
		level = LevelMedium
	default:
		level = LevelLow
	}

	return Assessment{
		SubjectID:       subject.ID,
		SubjectName:     subject.Name,
		Total:           tally.Total,
		Attended:        tally.Attended,
		Current:         current,
		Trend:           trend,
		DaysLeft:        daysLeft,
		FutureClasses:   futureClasses(daysLeft),
		Projected:       projected,
		RecentAbsences:  absences,
		Score:           score,
		Level:           level,
		Recommendations: p.recommend(tally, current, projected, trend),
	}, nil
}

// AssessAll assesses every subject that has recorded classes, riskiest first.
// Subjects without a tally or without classes are left out.
func (p *Projector) AssessAll(subjects []attendance.Subject, tallies attendance.Tallies, daysLeft int) ([]Assessment, error) {
	results := make([]Assessment, 0, len(subjects))
	for _, subj := range subjects {
		tally, ok := tallies[string(subj.ID)]
		if !ok {
			continue
		}
		a, err := p.Assess(subj, tally, daysLeft)
		if err != nil {
			var noData *NoDataError
			if errors.As(err, &noData) {
				continue
			}
			return nil, errors.Wrapf(err, "assessing subject %q", subj.ID)
		}
		results = append(results, a)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func futureClasses(daysLeft int) int {
	if daysLeft <= 0 {
		return 0
	}
	return daysLeft / daysPerClass
}

// Project estimates the attendance percentage after `daysLeft` more days, assuming one class every 3 days
// attended at 90% when the trend is not negative and at 70% otherwise.
func Project(currentPct float64, total int, trend float64, daysLeft int) float64 {
	future := futureClasses(daysLeft)
	if total+future == 0 {
		return 0
	}
	rate := improvingRate
	if trend < 0 {
		rate = decliningRate
	}
	futureAttended := float64(future) * rate
	currentAttended := currentPct / 100 * float64(total)
	return (currentAttended + futureAttended) / float64(total+future) * 100
}
