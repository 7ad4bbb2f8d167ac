package service

import (
	"math"

	"github.com/crypticpy/RTASS-sub003/model"
)

// Scoring thresholds shared by category and overall status
const (
	passThreshold             = 80
	needsImprovementThreshold = 60
)

// noApplicableRationale is the rationale returned when every criterion in a
// category was marked NOT_APPLICABLE for the incident
const noApplicableRationale = "No applicable criteria for this incident"

// CriterionOutcome is one evaluated criterion with its rubric weight
type CriterionOutcome struct {
	Status string
	Weight float64
}

// CategoryOutcome is one scored category with its rubric weight
type CategoryOutcome struct {
	Score  int
	Weight float64
}

// CategoryScore is the aggregated result of scoring one category
type CategoryScore struct {
	Score     int
	Status    string
	Rationale string
}

// CriterionScore maps a criterion status to its numeric score.
// NOT_APPLICABLE scores 0 but is excluded from aggregation entirely; the zero
// here never participates in a weighted average.
func CriterionScore(status string) int {
	switch status {
	case model.CriterionPass:
		return 100
	case model.CriterionPartial:
		return 50
	default:
		return 0
	}
}

// StatusForScore maps a 0-100 score to PASS / NEEDS_IMPROVEMENT / FAIL
func StatusForScore(score int) string {
	switch {
	case score >= passThreshold:
		return model.StatusPass
	case score >= needsImprovementThreshold:
		return model.StatusNeedsImprovement
	default:
		return model.StatusFail
	}
}

// ScoreCategory aggregates criterion outcomes into one category score.
// NOT_APPLICABLE criteria are removed and the remaining weights renormalized,
// so inapplicable criteria redistribute their weight instead of dragging the
// score down. A category with no applicable criteria at all scores 0 with
// status NEEDS_IMPROVEMENT, an explicit override rather than the threshold table.
func ScoreCategory(outcomes []CriterionOutcome) CategoryScore {
	applicable := make([]CriterionOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Status != model.CriterionNotApplicable {
			applicable = append(applicable, o)
		}
	}

	if len(applicable) == 0 {
		return CategoryScore{
			Score:     0,
			Status:    model.StatusNeedsImprovement,
			Rationale: noApplicableRationale,
		}
	}

	var totalWeight float64
	for _, o := range applicable {
		totalWeight += o.Weight
	}

	var weighted float64
	for _, o := range applicable {
		weighted += float64(CriterionScore(o.Status)) * (o.Weight / totalWeight)
	}

	score := roundHalfUp(weighted)
	return CategoryScore{
		Score:  score,
		Status: StatusForScore(score),
	}
}

// ScoreOverall aggregates category scores into the overall audit score.
// Categories with score exactly 0 are excluded from the weighted average and
// the remaining weights renormalized. This conflates "no applicable criteria"
// with a genuine all-FAIL category; preserved as current behavior.
func ScoreOverall(categories []CategoryOutcome) (int, string) {
	applicable := make([]CategoryOutcome, 0, len(categories))
	for _, c := range categories {
		if c.Score > 0 {
			applicable = append(applicable, c)
		}
	}

	if len(applicable) == 0 {
		return 0, StatusForScore(0)
	}

	var totalWeight float64
	for _, c := range applicable {
		totalWeight += c.Weight
	}

	var weighted float64
	for _, c := range applicable {
		weighted += float64(c.Score) * (c.Weight / totalWeight)
	}

	score := roundHalfUp(weighted)
	return score, StatusForScore(score)
}

// roundHalfUp rounds to the nearest integer with .5 rounding up
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
