package generation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

var (
	durationPattern  = regexp.MustCompile(`(\d+)\s*-?\s*weeks?\b`)
	frequencyPattern = regexp.MustCompile(`(\d+)\s*(?:x|times|days?|sessions?|workouts?)\s*(?:a|per|each|/)\s*week`)
)

type scriptedExercise struct {
	name     string
	reps     int
	duration int
}

var scriptedLibrary = map[string][]scriptedExercise{
	"strength": {
		{name: "Back Squat", reps: 5},
		{name: "Bench Press", reps: 5},
		{name: "Deadlift", reps: 5},
		{name: "Overhead Press", reps: 6},
		{name: "Barbell Row", reps: 8},
		{name: "Plank", duration: 45},
	},
	"hypertrophy": {
		{name: "Leg Press", reps: 12},
		{name: "Incline Dumbbell Press", reps: 10},
		{name: "Lat Pulldown", reps: 12},
		{name: "Romanian Deadlift", reps: 10},
		{name: "Lateral Raise", reps: 15},
		{name: "Cable Crunch", reps: 15},
	},
	"conditioning": {
		{name: "Rowing Intervals", duration: 60},
		{name: "Kettlebell Swing", reps: 15},
		{name: "Burpee", reps: 10},
		{name: "Jump Rope", duration: 90},
		{name: "Walking Lunge", reps: 12},
		{name: "Mountain Climber", duration: 40},
	},
}

// Scripted is a deterministic, offline oracle for local development.
// It reads duration and weekly frequency out of the user's turns and
// proposes a complete draft once both are known.
type Scripted struct{}

// NewScripted returns the offline oracle.
func NewScripted() *Scripted { return &Scripted{} }

// Generate implements Gateway.
func (s *Scripted) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	var said []string
	for _, t := range req.Turns {
		if t.Role == domain.RoleUser {
			said = append(said, strings.ToLower(t.Content))
		}
	}
	all := strings.Join(said, "\n")

	frequency := lastNumber(frequencyPattern, all)
	duration := lastNumber(durationPattern, strings.Join(frequencyPattern.Split(all, -1), " "))
	frequency = min(frequency, 7)
	duration = min(duration, 52)

	var missing []string
	if duration <= 0 {
		missing = append(missing, "duration_weeks")
	}
	if frequency <= 0 {
		missing = append(missing, "frequency_per_week")
	}

	threadID := req.ThreadID
	if threadID == "" {
		threadID = "scripted-" + req.ConversationID
	}

	if len(missing) > 0 {
		return &Result{
			Stage:         string(domain.StageGathering),
			Message:       clarifyingQuestion(missing),
			Reasoning:     &domain.Reasoning{Summary: "Plan length or weekly frequency not stated yet."},
			MissingFields: missing,
			ThreadID:      threadID,
		}, nil
	}

	focus := latest(said, pickFocus, "strength")
	draft := buildDraft(focus, domain.ParseDifficulty(latest(said, pickDifficulty, "medium")), duration, frequency)
	return &Result{
		Stage: string(domain.StagePreview),
		Message: fmt.Sprintf("Here is a %d-week %s plan with %d sessions per week. Approve it or tell me what to change.",
			duration, focus, frequency),
		Reasoning: &domain.Reasoning{
			Summary: "All required details are known.",
			Steps: []string{
				fmt.Sprintf("duration %d weeks", duration),
				fmt.Sprintf("frequency %d per week", frequency),
				"focus " + focus,
			},
		},
		Draft:    draft,
		ThreadID: threadID,
	}, nil
}

func clarifyingQuestion(missing []string) string {
	switch {
	case len(missing) == 2:
		return "How many weeks should the plan run, and how many days per week can you train?"
	case missing[0] == "duration_weeks":
		return "How many weeks should the plan run?"
	default:
		return "How many days per week can you train?"
	}
}

func lastNumber(re *regexp.Regexp, s string) int {
	matches := re.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0
	}
	n, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil {
		return 0
	}
	return n
}

// latest returns what pick finds in the most recent turn that mentions
// anything, so a modification overrides the original request.
func latest(turns []string, pick func(string) (string, bool), fallback string) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if v, ok := pick(turns[i]); ok {
			return v
		}
	}
	return fallback
}

func pickFocus(s string) (string, bool) {
	switch {
	case strings.Contains(s, "cardio"), strings.Contains(s, "conditioning"), strings.Contains(s, "endurance"), strings.Contains(s, "fat"):
		return "conditioning", true
	case strings.Contains(s, "muscle"), strings.Contains(s, "hypertrophy"), strings.Contains(s, "bulk"):
		return "hypertrophy", true
	case strings.Contains(s, "strength"), strings.Contains(s, "stronger"), strings.Contains(s, "powerlifting"):
		return "strength", true
	default:
		return "", false
	}
}

func pickDifficulty(s string) (string, bool) {
	switch {
	case strings.Contains(s, "beginner"), strings.Contains(s, "easy"):
		return "beginner", true
	case strings.Contains(s, "advanced"), strings.Contains(s, "hard"):
		return "advanced", true
	case strings.Contains(s, "intermediate"):
		return "medium", true
	default:
		return "", false
	}
}

func buildDraft(focus string, difficulty domain.Difficulty, duration, frequency int) *domain.PlanDraft {
	library := scriptedLibrary[focus]
	sets := 2 + difficulty.Rank()

	weeks := make([]domain.Week, 0, duration)
	for w := 1; w <= duration; w++ {
		sessions := make([]domain.Session, 0, frequency)
		for d := 0; d < frequency; d++ {
			exercises := make([]domain.Exercise, 0, 3)
			for k := 0; k < 3; k++ {
				src := library[(d*3+k)%len(library)]
				ex := domain.Exercise{
					Name:           src.name,
					Sets:           sets,
					RestSeconds:    90,
					FoundInLibrary: true,
				}
				if src.duration > 0 {
					v := src.duration
					ex.DurationSeconds = &v
				} else {
					v := src.reps
					ex.Reps = &v
				}
				exercises = append(exercises, ex)
			}
			sessions = append(sessions, domain.Session{
				Name:            fmt.Sprintf("Day %d", d+1),
				DayIndex:        d + 1,
				DurationMinutes: 45 + 5*difficulty.Rank(),
				Exercises:       exercises,
			})
		}
		weeks = append(weeks, domain.Week{
			WeekNumber: w,
			Focus:      focus,
			Sessions:   sessions,
		})
	}

	return &domain.PlanDraft{
		Name:             fmt.Sprintf("%d-Week %s Plan", duration, strings.ToUpper(focus[:1])+focus[1:]),
		Description:      fmt.Sprintf("%d sessions per week focused on %s.", frequency, focus),
		Difficulty:       difficulty,
		DurationWeeks:    duration,
		FrequencyPerWeek: frequency,
		Tags:             []string{focus},
		Weeks:            weeks,
	}
}

var _ Gateway = (*Scripted)(nil)
