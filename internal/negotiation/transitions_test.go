package negotiation

import (
	"testing"

	"github.com/shehzadigill/gymcoachai-sub008/internal/domain"
)

func TestTerminalStagesHaveNoExits(t *testing.T) {
	all := []domain.Stage{
		domain.StageInput, domain.StageGathering, domain.StagePreview,
		domain.StageSaving, domain.StageComplete, domain.StageCancelled,
	}
	for _, to := range all {
		if canTransition(domain.StageComplete, to) {
			t.Errorf("complete -> %s should be illegal", to)
		}
		if canTransition(domain.StageCancelled, to) {
			t.Errorf("cancelled -> %s should be illegal", to)
		}
	}
	if canTransition(domain.StageInput, domain.StageComplete) {
		t.Error("input -> complete should be illegal")
	}
	if canTransition(domain.StageGathering, domain.StageSaving) {
		t.Error("gathering -> saving should be illegal")
	}
	if !canTransition(domain.StageSaving, domain.StageCancelled) {
		t.Error("saving -> cancelled should be legal")
	}
}

func TestResolveStage(t *testing.T) {
	tests := []struct {
		current    domain.Stage
		hint       string
		approvable bool
		want       domain.Stage
	}{
		{domain.StageInput, "preview", true, domain.StagePreview},
		{domain.StageInput, "preview", false, domain.StageGathering},
		{domain.StageInput, "complete", true, domain.StagePreview},
		{domain.StageGathering, "gathering_info", true, domain.StageGathering},
		{domain.StageGathering, "", false, domain.StageGathering},
		{domain.StageGathering, "READY", true, domain.StagePreview},
		{domain.StageGathering, "cancelled", false, domain.StageGathering},
	}
	for _, tt := range tests {
		if got := resolveStage(tt.current, tt.hint, tt.approvable); got != tt.want {
			t.Errorf("resolveStage(%s, %q, %t) = %s, want %s", tt.current, tt.hint, tt.approvable, got, tt.want)
		}
	}
}
