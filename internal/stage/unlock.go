package stage

import "github.com/sells-group/outreach-cli/internal/model"

// Counts are cumulative: a prospect that reached DRAFTED also counts as
// qualified and discovered.
type Counts struct {
	Discovered int `json:"discovered"`
	Qualified  int `json:"qualified"`
	Drafted    int `json:"drafted"`
	Sent       int `json:"sent"`
}

// CountsFromStages folds per-stage prospect counts into cumulative counts.
// UNKNOWN prospects are not counted.
func CountsFromStages(byStage map[model.Stage]int) Counts {
	var c Counts
	c.Sent = byStage[model.StageSent]
	c.Drafted = byStage[model.StageDrafted] + c.Sent
	c.Qualified = byStage[model.StageVerified] + c.Drafted
	c.Discovered = byStage[model.StageScraped] + byStage[model.StageDiscovered] + c.Qualified
	return c
}

// UnlockedSteps returns the steps available for the given counts, in
// pipeline order. Discovery is always available. It only reports; it never
// starts work.
func UnlockedSteps(c Counts) []model.Step {
	steps := []model.Step{model.StepDiscovery}
	if c.Discovered > 0 {
		steps = append(steps, model.StepReview)
	}
	if c.Qualified > 0 {
		steps = append(steps, model.StepDrafting)
	}
	if c.Drafted > 0 {
		steps = append(steps, model.StepSending)
	}
	if c.Sent > 0 {
		steps = append(steps, model.StepFollowups)
	}
	return steps
}

// IsUnlocked reports whether step is available for c.
func IsUnlocked(c Counts, step model.Step) bool {
	for _, s := range UnlockedSteps(c) {
		if s == step {
			return true
		}
	}
	return false
}
