package study

import "math"

var weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

const (
	minSessions  = 2
	sessionHours = 1.5 // preferred length of a session
)

type Slot struct {
	Subject  string   `json:"subject"`
	Hours    float64  `json:"hours"`
	Priority Priority `json:"priority"`
}

type Day struct {
	Name       string  `json:"day"`
	Slots      []Slot  `json:"sessions"`
	Hours      float64 `json:"hours"`
	Overbooked bool    `json:"overbooked"` // more than the available hours per day
}

// WeeklySchedule spreads the weekly hours of every plan over 2 to 7 sessions on distinct days,
// always picking the least loaded days first (Monday first on ties).
// Plans are scheduled in order, so pass them highest priority first.
func WeeklySchedule(plans []SubjectPlan, hoursPerDay float64) []Day {
	days := make([]Day, len(weekdays))
	for i, name := range weekdays {
		days[i] = Day{Name: name, Slots: []Slot{}}
	}

	for _, plan := range plans {
		sessions := int(plan.WeeklyHours / sessionHours)
		if sessions < minSessions {
			sessions = minSessions
		}
		if sessions > len(days) {
			sessions = len(days)
		}
		hours := math.Round(plan.WeeklyHours/float64(sessions)*10) / 10

		used := make([]bool, len(days))
		for s := 0; s < sessions; s++ {
			best := -1
			for i := range days {
				if !used[i] && (best < 0 || days[i].Hours < days[best].Hours) {
					best = i
				}
			}
			used[best] = true
			days[best].Slots = append(days[best].Slots, Slot{Subject: plan.SubjectName, Hours: hours, Priority: plan.Priority})
			days[best].Hours += hours
		}
	}

	for i := range days {
		days[i].Hours = math.Round(days[i].Hours*10) / 10
		days[i].Overbooked = hoursPerDay > 0 && days[i].Hours > hoursPerDay
	}
	return days
}
