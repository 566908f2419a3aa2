package negotiation

import "github.com/shehzadigill/gymcoachai-sub008/internal/domain"

// transitions lists every legal stage change. Anything absent is rejected,
// including stage values proposed by the generation oracle. saving only
// exists inside a running Approve and is never committed.
var transitions = map[domain.Stage][]domain.Stage{
	domain.StageInput:     {domain.StageGathering, domain.StagePreview, domain.StageCancelled},
	domain.StageGathering: {domain.StageGathering, domain.StagePreview, domain.StageCancelled},
	domain.StagePreview:   {domain.StageGathering, domain.StageSaving, domain.StageCancelled},
	domain.StageSaving:    {domain.StageComplete, domain.StagePreview, domain.StageCancelled},
	domain.StageComplete:  nil,
	domain.StageCancelled: nil,
}

func canTransition(from, to domain.Stage) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// resolveStage decides where a generation round lands. The oracle's hint is
// only honored when it asks to keep gathering; preview always requires the
// validator's approval.
func resolveStage(current domain.Stage, hint string, approvable bool) domain.Stage {
	next := domain.StageGathering
	if h, ok := domain.ParseStage(hint); (!ok || h != domain.StageGathering) && approvable {
		next = domain.StagePreview
	}
	if !canTransition(current, next) {
		return current
	}
	return next
}
