// Package draft decides whether a plan draft is complete enough to approve.
package draft

import (
	"fmt"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

// Missing-field descriptors for plan-level defects.
const (
	MissingDraft     = "draft"
	MissingDuration  = "duration_weeks"
	MissingFrequency = "frequency_per_week"
	MissingWeeks     = "weeks"
)

// Result is the validator verdict.
type Result struct {
	Approvable bool
	// Missing names the first violating path. It is empty when Approvable.
	Missing []string
	// Notes lists exercise prescriptions that look wrong. They never affect
	// Approvable.
	Notes []string
}

// Validate inspects a draft. It never mutates its input and has no side effects.
//
// A draft is approvable iff duration and frequency are positive, the week
// sequence is non-empty, every week has sessions, and every session has
// exercises. Only the first violation is reported.
func Validate(d *domain.PlanDraft) Result {
	if d == nil {
		return reject(MissingDraft)
	}
	if d.DurationWeeks <= 0 {
		return reject(MissingDuration)
	}
	if d.FrequencyPerWeek <= 0 {
		return reject(MissingFrequency)
	}
	if len(d.Weeks) == 0 {
		return reject(MissingWeeks)
	}

	var notes []string
	for wi, w := range d.Weeks {
		weekPath := fmt.Sprintf("week %d", weekNumber(w, wi))
		if len(w.Sessions) == 0 {
			return reject(weekPath + ": no sessions")
		}
		for si, s := range w.Sessions {
			sessionPath := fmt.Sprintf("%s session %d", weekPath, si+1)
			if len(s.Exercises) == 0 {
				return reject(sessionPath + ": no exercises")
			}
			for ei, e := range s.Exercises {
				if msg := exerciseDefect(e); msg != "" {
					notes = append(notes, fmt.Sprintf("%s exercise %d: %s", sessionPath, ei+1, msg))
				}
			}
		}
	}

	return Result{Approvable: true, Notes: notes}
}

func exerciseDefect(e domain.Exercise) string {
	switch {
	case e.Sets <= 0:
		return "no sets"
	case e.Reps != nil && e.DurationSeconds != nil:
		return "both reps and duration"
	case e.Reps == nil && e.DurationSeconds == nil:
		return "no reps or duration"
	}
	return ""
}

// weekNumber prefers the draft's own numbering and falls back to position.
func weekNumber(w domain.Week, index int) int {
	if w.WeekNumber > 0 {
		return w.WeekNumber
	}
	return index + 1
}

func reject(path string) Result {
	return Result{Approvable: false, Missing: []string{path}}
}
