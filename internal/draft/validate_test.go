package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

func intPtr(v int) *int { return &v }

func completeDraft() *domain.PlanDraft {
	return &domain.PlanDraft{
		Name:             "Muscle Builder",
		Difficulty:       domain.DifficultyMedium,
		DurationWeeks:    12,
		FrequencyPerWeek: 4,
		Weeks: []domain.Week{
			{
				WeekNumber: 1,
				Focus:      "foundation",
				Sessions: []domain.Session{
					{Name: "Upper", DayIndex: 1, DurationMinutes: 60, Exercises: []domain.Exercise{
						{Name: "Bench Press", Sets: 4, Reps: intPtr(8), RestSeconds: 90, FoundInLibrary: true},
					}},
				},
			},
			{
				WeekNumber: 2,
				Focus:      "volume",
				Sessions: []domain.Session{
					{Name: "Lower", DayIndex: 2, DurationMinutes: 60, Exercises: []domain.Exercise{
						{Name: "Plank", Sets: 3, DurationSeconds: intPtr(45), RestSeconds: 30, NeedsCreation: true},
					}},
				},
			},
		},
	}
}

func TestValidateCompleteDraft(t *testing.T) {
	res := Validate(completeDraft())
	assert.True(t, res.Approvable)
	assert.Empty(t, res.Missing)
	assert.Empty(t, res.Notes)
}

func TestValidateExerciseDefectsDoNotBlockApproval(t *testing.T) {
	d := completeDraft()
	d.Weeks[0].Sessions[0].Exercises[0].Sets = 0
	d.Weeks[1].Sessions[0].Exercises[0].Reps = intPtr(12)

	res := Validate(d)
	assert.True(t, res.Approvable)
	assert.Empty(t, res.Missing)
	assert.Equal(t, []string{
		"week 1 session 1 exercise 1: no sets",
		"week 2 session 1 exercise 1: both reps and duration",
	}, res.Notes)
}

func TestValidateMinimalDraftWithBareExercise(t *testing.T) {
	d := &domain.PlanDraft{
		DurationWeeks:    1,
		FrequencyPerWeek: 1,
		Weeks: []domain.Week{{WeekNumber: 1, Sessions: []domain.Session{
			{Name: "Day 1", Exercises: []domain.Exercise{{Name: "Walk"}}},
		}}},
	}

	res := Validate(d)
	assert.True(t, res.Approvable)
	assert.Equal(t, []string{"week 1 session 1 exercise 1: no sets"}, res.Notes)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *domain.PlanDraft) *domain.PlanDraft
		missing string
	}{
		{
			name:    "nil draft",
			mutate:  func(*domain.PlanDraft) *domain.PlanDraft { return nil },
			missing: MissingDraft,
		},
		{
			name: "zero duration",
			mutate: func(d *domain.PlanDraft) *domain.PlanDraft {
				d.DurationWeeks = 0
				return d
			},
			missing: MissingDuration,
		},
		{
			name: "negative frequency",
			mutate: func(d *domain.PlanDraft) *domain.PlanDraft {
				d.FrequencyPerWeek = -1
				return d
			},
			missing: MissingFrequency,
		},
		{
			name: "zero weeks",
			mutate: func(d *domain.PlanDraft) *domain.PlanDraft {
				d.Weeks = nil
				return d
			},
			missing: MissingWeeks,
		},
		{
			name: "week without sessions",
			mutate: func(d *domain.PlanDraft) *domain.PlanDraft {
				d.Weeks[1].Sessions = nil
				return d
			},
			missing: "week 2: no sessions",
		},
		{
			name: "session without exercises",
			mutate: func(d *domain.PlanDraft) *domain.PlanDraft {
				d.Weeks[1].Sessions[0].Exercises = nil
				return d
			},
			missing: "week 2 session 1: no exercises",
		},
		{
			name: "unnumbered week falls back to position",
			mutate: func(d *domain.PlanDraft) *domain.PlanDraft {
				d.Weeks[1].WeekNumber = 0
				d.Weeks[1].Sessions = []domain.Session{}
				return d
			},
			missing: "week 2: no sessions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.mutate(completeDraft()))
			require.False(t, res.Approvable)
			require.Len(t, res.Missing, 1)
			assert.Equal(t, tt.missing, res.Missing[0])
		})
	}
}

func TestValidateReportsFirstViolationOnly(t *testing.T) {
	d := completeDraft()
	d.Weeks[0].Sessions[0].Exercises = nil
	d.Weeks[1].Sessions = nil

	res := Validate(d)
	require.False(t, res.Approvable)
	assert.Equal(t, []string{"week 1 session 1: no exercises"}, res.Missing)
}

func TestValidateDoesNotMutate(t *testing.T) {
	d := completeDraft()
	before := d.Clone()

	Validate(d)

	assert.Equal(t, before, d)
}
