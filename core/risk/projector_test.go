package risk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core/attendance"
)

var (
	mathematics = attendance.Subject{ID: "1", Name: "Math"}
	physics     = attendance.Subject{ID: "2", Name: "Physics"}
)

func constScorer(score float64) Scorer {
	return ScorerFunc(func(Features) float64 { return score })
}

// counts builds a Tally without history, so that the trend is flat.
func counts(attended, total int) attendance.Tally {
	return attendance.Tally{Total: total, Attended: attended}
}

// history builds a Tally of `presents` classes followed by `absents` classes.
func history(presents, absents int) attendance.Tally {
	tally := attendance.Tally{Total: presents + absents, Attended: presents}
	for i := 0; i < presents+absents; i++ {
		status := attendance.StatusPresent
		if i >= presents {
			status = attendance.StatusAbsent
		}
		tally.Records = append(tally.Records, attendance.Entry{Key: fmt.Sprintf("1-%d-x", i), Status: status})
	}
	return tally
}

func texts(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Text
	}
	return out
}

func TestProjector_Assess(t *testing.T) {
	tests := []struct {
		name          string
		tally         attendance.Tally
		daysLeft      int
		score         float64
		wantLevel     Level
		wantProjected float64
		wantTrend     float64
		wantAbsences  int
		wantRecs      []string
	}{
		{
			name:          "below high-risk line",
			tally:         counts(13, 20),
			daysLeft:      60,
			score:         0.9,
			wantLevel:     LevelHigh,
			wantProjected: 77.5,
			wantRecs:      []string{"Attend next 8 classes without fail to reach 75%"},
		},
		{
			name:          "comfortable",
			tally:         counts(16, 20),
			daysLeft:      60,
			score:         0.1,
			wantLevel:     LevelLow,
			wantProjected: 85,
			wantRecs:      []string{"You can safely miss 1 more class(es)"},
		},
		{
			name:          "exactly at threshold",
			tally:         counts(15, 20),
			daysLeft:      60,
			score:         0.1,
			wantLevel:     LevelLow,
			wantProjected: 82.5,
			wantRecs:      []string{"Maintain current attendance to stay above threshold"},
		},
		{
			name:          "score raises level",
			tally:         counts(16, 20),
			daysLeft:      60,
			score:         0.31,
			wantLevel:     LevelMedium,
			wantProjected: 85,
			wantRecs:      []string{"You can safely miss 1 more class(es)"},
		},
		{
			name:          "between thresholds",
			tally:         counts(29, 40),
			daysLeft:      0,
			score:         0,
			wantLevel:     LevelMedium,
			wantProjected: 72.5,
			wantRecs: []string{
				"Attend next 4 classes without fail to reach 75%",
				"Projected to fall below 75% - avoid further absences",
			},
		},
		{
			name:          "recent absences",
			tally:         history(36, 10),
			daysLeft:      60,
			score:         0.2,
			wantLevel:     LevelLow,
			wantProjected: 50.0 / 66 * 100,
			wantTrend:     -36.0 / 46 * 100,
			wantAbsences:  10,
			wantRecs: []string{
				"Declining trend detected - improve attendance immediately",
				"You can safely miss 2 more class(es)",
			},
		},
		{
			name:          "projected to fall",
			tally:         history(15, 5),
			daysLeft:      60,
			score:         0.6,
			wantLevel:     LevelMedium,
			wantProjected: 72.5,
			wantTrend:     -25,
			wantAbsences:  5,
			wantRecs: []string{
				"Projected to fall below 75% - avoid further absences",
				"Declining trend detected - improve attendance immediately",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProjector(constScorer(tt.score))
			got, err := p.Assess(mathematics, tt.tally, tt.daysLeft)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLevel, got.Level)
			assert.InDelta(t, tt.wantProjected, got.Projected, 1e-9)
			assert.InDelta(t, tt.wantTrend, got.Trend, 1e-9)
			assert.Equal(t, tt.wantAbsences, got.RecentAbsences)
			assert.Equal(t, tt.wantRecs, texts(got.Recommendations))
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, mathematics.Name, got.SubjectName)
		})
	}
}

func TestProjector_Assess_shortHistoryHasNoTrend(t *testing.T) {
	p := NewProjector(constScorer(0))
	got, err := p.Assess(mathematics, history(0, 2), 30)
	require.NoError(t, err)
	assert.Zero(t, got.Trend)
	assert.Equal(t, 2, got.RecentAbsences)
}

func TestProjector_Assess_noData(t *testing.T) {
	p := NewProjector(constScorer(0))
	_, err := p.Assess(mathematics, attendance.Tally{}, 30)
	var noData *NoDataError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, mathematics.ID, noData.SubjectID)
}

func TestProjector_Assess_recommendationOrder(t *testing.T) {
	p := NewProjector(constScorer(1))
	got, err := p.Assess(mathematics, history(5, 10), 60)
	require.NoError(t, err)

	types := make([]string, len(got.Recommendations))
	for i, r := range got.Recommendations {
		types[i] = r.Type
	}
	assert.Equal(t, []string{RecommendationUrgent, RecommendationWarning, RecommendationWarning}, types)
	assert.Equal(t, LevelHigh, got.Level)
	assert.Equal(t, "danger", got.Level.Color())
}

func TestProjector_AssessAll(t *testing.T) {
	chemistry := attendance.Subject{ID: "3", Name: "Chemistry"}
	art := attendance.Subject{ID: "4", Name: "Art"}
	tallies := attendance.Tallies{
		"1": counts(19, 20),
		"2": counts(10, 20),
		"3": {},
	}
	p := NewProjector(ScorerFunc(func(f Features) float64 { return 1 - f.Current/100 }))

	got, err := p.AssessAll([]attendance.Subject{mathematics, physics, chemistry, art}, tallies, 30)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, physics.ID, got[0].SubjectID)
	assert.Equal(t, mathematics.ID, got[1].SubjectID)
}

func TestProject(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		total    int
		trend    float64
		daysLeft int
		want     float64
	}{
		{name: "no horizon", current: 80, total: 10, daysLeft: 0, want: 80},
		{name: "negative horizon", current: 80, total: 10, daysLeft: -9, want: 80},
		{name: "improving", current: 50, total: 10, daysLeft: 30, want: 70},
		{name: "declining", current: 50, total: 10, trend: -0.1, daysLeft: 30, want: 60},
		{name: "nothing at all", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Project(tt.current, tt.total, tt.trend, tt.daysLeft), 1e-9)
		})
	}
}

func TestProject_staysWithinBounds(t *testing.T) {
	for _, current := range []float64{0, 33.3, 75, 100} {
		for _, days := range []int{0, 3, 60, 365} {
			for _, trend := range []float64{-50, 0, 20} {
				got := Project(current, 12, trend, days)
				assert.GreaterOrEqual(t, got, 0.0)
				assert.LessOrEqual(t, got, 100.0)
			}
		}
	}
}

func TestClassesNeeded(t *testing.T) {
	assert.Equal(t, 8, ClassesNeeded(13, 20, 75))
	assert.Equal(t, 0, ClassesNeeded(15, 20, 75))
	assert.Equal(t, maxClassesNeeded, ClassesNeeded(0, 100, 75))

	prev := 0
	for attended := 20; attended >= 0; attended-- {
		n := ClassesNeeded(attended, 20, 75)
		assert.GreaterOrEqual(t, n, prev, "attended %d", attended)
		prev = n
	}
}

func TestSafeBunks(t *testing.T) {
	assert.Equal(t, 1, SafeBunks(16, 20, 75))
	assert.Equal(t, 0, SafeBunks(15, 20, 75))
	assert.Equal(t, 2, SafeBunks(36, 46, 75))
	assert.Equal(t, maxSafeBunks, SafeBunks(1000, 1000, 75))
}

func TestProjector_Assess_inconsistentCounts(t *testing.T) {
	p := NewProjector(constScorer(0))

	tests := []struct {
		name  string
		tally attendance.Tally
	}{
		{name: "attended exceeds total", tally: counts(12, 10)},
		{name: "negative total", tally: counts(0, -1)},
		{name: "negative attended", tally: counts(-2, 3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Assess(mathematics, tt.tally, 30)
			var dataErr *attendance.DataError
			require.ErrorAs(t, err, &dataErr)
			assert.Equal(t, string(mathematics.ID), dataErr.Subject)

			_, err = p.AssessAll([]attendance.Subject{mathematics}, attendance.Tallies{"1": tt.tally}, 30)
			assert.ErrorAs(t, err, &dataErr)
		})
	}
}
