package model

import (
	"fmt"
	"math"
	"time"
)

// Criterion scoring methods
const (
	MethodPassFail         = "PASS_FAIL"
	MethodNumeric          = "NUMERIC"
	MethodCriticalPassFail = "CRITICAL_PASS_FAIL"
)

// WeightTolerance is the allowed deviation when validating that weights sum to 1.0
const WeightTolerance = 0.01

// Criterion is the smallest scored compliance unit in a rubric
type Criterion struct {
	ID               string  `json:"id"`
	Description      string  `json:"description"`
	EvidenceRequired string  `json:"evidence_required,omitempty"`
	ScoringMethod    string  `json:"scoring_method"`
	Weight           float64 `json:"weight"`
}

// Category is a weighted group of criteria evaluated together
type Category struct {
	Name                 string      `json:"name"`
	Description          string      `json:"description,omitempty"`
	Weight               float64     `json:"weight"`
	RegulatoryReferences []string    `json:"regulatory_references,omitempty"`
	Criteria             []Criterion `json:"criteria"`
}

// Template is an ordered compliance rubric applied to incident transcripts
type Template struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Validate checks the rubric invariants: category weights sum to 1.0,
// per-category criterion weights sum to 1.0, criterion ids are unique across
// the template, and every category has at least one criterion.
func (t *Template) Validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("template must have at least one category")
	}

	seen := make(map[string]string)
	var categoryWeightSum float64

	for _, cat := range t.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category name is required")
		}
		if cat.Weight <= 0 || cat.Weight > 1 {
			return fmt.Errorf("category %q weight must be in (0,1], got %v", cat.Name, cat.Weight)
		}
		categoryWeightSum += cat.Weight

		if len(cat.Criteria) == 0 {
			return fmt.Errorf("category %q must have at least one criterion", cat.Name)
		}

		var criterionWeightSum float64
		for _, cr := range cat.Criteria {
			if cr.ID == "" {
				return fmt.Errorf("criterion in category %q is missing an id", cat.Name)
			}
			if prev, dup := seen[cr.ID]; dup {
				return fmt.Errorf("criterion id %q duplicated across categories %q and %q", cr.ID, prev, cat.Name)
			}
			seen[cr.ID] = cat.Name

			if cr.Weight <= 0 || cr.Weight > 1 {
				return fmt.Errorf("criterion %q weight must be in (0,1], got %v", cr.ID, cr.Weight)
			}
			switch cr.ScoringMethod {
			case MethodPassFail, MethodNumeric, MethodCriticalPassFail:
			default:
				return fmt.Errorf("criterion %q has unknown scoring method %q", cr.ID, cr.ScoringMethod)
			}
			criterionWeightSum += cr.Weight
		}

		if math.Abs(criterionWeightSum-1.0) > WeightTolerance {
			return fmt.Errorf("criterion weights in category %q sum to %v, expected 1.0", cat.Name, criterionWeightSum)
		}
	}

	if math.Abs(categoryWeightSum-1.0) > WeightTolerance {
		return fmt.Errorf("category weights sum to %v, expected 1.0", categoryWeightSum)
	}

	return nil
}

// FindCriterion returns the criterion with the given id, or nil
func (c *Category) FindCriterion(id string) *Criterion {
	for i := range c.Criteria {
		if c.Criteria[i].ID == id {
			return &c.Criteria[i]
		}
	}
	return nil
}
