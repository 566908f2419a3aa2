package domain

import (
	"strings"
	"time"
)

// Difficulty is the ordinal difficulty of a plan.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty maps oracle vocabulary onto the three difficulty levels.
// Unknown values fall back to medium.
func ParseDifficulty(raw string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "easy", "beginner":
		return DifficultyEasy
	case "hard", "advanced":
		return DifficultyHard
	default:
		return DifficultyMedium
	}
}

// Rank returns the ordinal position of the difficulty (easy=1 .. hard=3).
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyEasy:
		return 1
	case DifficultyHard:
		return 3
	default:
		return 2
	}
}

// PlanDraft is the structured, not-yet-persisted training plan.
type PlanDraft struct {
	Name             string     `json:"name"`
	Description      string     `json:"description"`
	Difficulty       Difficulty `json:"difficulty"`
	DurationWeeks    int        `json:"duration_weeks"`
	FrequencyPerWeek int        `json:"frequency_per_week"`
	Tags             []string   `json:"tags,omitempty"`
	Weeks            []Week     `json:"weeks"`
}

// Week groups the sessions scheduled for one week of the plan.
type Week struct {
	WeekNumber int       `json:"week_number"`
	Focus      string    `json:"focus"`
	Sessions   []Session `json:"sessions"`
}

// Session is a single workout within a week.
type Session struct {
	Name            string     `json:"name"`
	DayIndex        int        `json:"day_index"`
	DurationMinutes int        `json:"duration_minutes"`
	Exercises       []Exercise `json:"exercises"`
}

// Exercise is one prescribed movement. Exactly one of Reps and
// DurationSeconds is expected to be set.
type Exercise struct {
	Name            string `json:"name"`
	Sets            int    `json:"sets"`
	Reps            *int   `json:"reps,omitempty"`
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	RestSeconds     int    `json:"rest_seconds"`
	FoundInLibrary  bool   `json:"found_in_library"`
	NeedsCreation   bool   `json:"needs_creation"`
}

// TotalExerciseCount counts every exercise across all weeks and sessions.
func (d *PlanDraft) TotalExerciseCount() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, w := range d.Weeks {
		for _, s := range w.Sessions {
			n += len(s.Exercises)
		}
	}
	return n
}

// NewExerciseCount counts exercises that must be created in the library.
func (d *PlanDraft) NewExerciseCount() int {
	if d == nil {
		return 0
	}
	n := 0
	for _, w := range d.Weeks {
		for _, s := range w.Sessions {
			for _, e := range s.Exercises {
				if e.NeedsCreation {
					n++
				}
			}
		}
	}
	return n
}

// Clone returns a deep copy of the draft.
func (d *PlanDraft) Clone() *PlanDraft {
	if d == nil {
		return nil
	}
	c := *d
	c.Tags = append([]string(nil), d.Tags...)
	c.Weeks = make([]Week, len(d.Weeks))
	for i, w := range d.Weeks {
		cw := w
		cw.Sessions = make([]Session, len(w.Sessions))
		for j, s := range w.Sessions {
			cs := s
			cs.Exercises = make([]Exercise, len(s.Exercises))
			for k, e := range s.Exercises {
				ce := e
				if e.Reps != nil {
					v := *e.Reps
					ce.Reps = &v
				}
				if e.DurationSeconds != nil {
					v := *e.DurationSeconds
					ce.DurationSeconds = &v
				}
				cs.Exercises[k] = ce
			}
			cw.Sessions[j] = cs
		}
		c.Weeks[i] = cw
	}
	return &c
}

// Plan is an approved, persisted training plan.
type Plan struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	UserID         string     `json:"user_id"`
	Draft          *PlanDraft `json:"draft"`
	CreatedAt      time.Time  `json:"created_at"`
}
