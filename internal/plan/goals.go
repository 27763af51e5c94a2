package plan

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"mindmovie/internal/services"
)

// Category identifies one of the life areas a vision covers.
type Category string

const (
	CategoryHealth        Category = "health"
	CategoryWealth        Category = "wealth"
	CategoryCareer        Category = "career"
	CategoryRelationships Category = "relationships"
	CategoryGrowth        Category = "growth"
	CategoryLifestyle     Category = "lifestyle"
)

// Categories lists every life area in presentation order.
func Categories() []Category {
	return []Category{
		CategoryHealth,
		CategoryWealth,
		CategoryCareer,
		CategoryRelationships,
		CategoryGrowth,
		CategoryLifestyle,
	}
}

// Valid reports whether the category is one of the known life areas.
func (c Category) Valid() bool {
	switch c {
	case CategoryHealth, CategoryWealth, CategoryCareer, CategoryRelationships, CategoryGrowth, CategoryLifestyle:
		return true
	}
	return false
}

// Goal captures a single aspiration extracted from the questionnaire.
type Goal struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Affirmation string   `json:"affirmation"`
	Imagery     string   `json:"imagery,omitempty"`
}

// GoalSet is the structured outcome of the goal extraction stage.
type GoalSet struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Goals       []Goal    `json:"goals"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// Validate checks that the goal set is usable for scene generation.
func (g *GoalSet) Validate() error {
	if g == nil {
		return services.Wrap(services.ErrValidation, "goal_extraction", "validate", "goal set is nil", nil)
	}
	if len(g.Goals) == 0 {
		return services.Wrap(services.ErrValidation, "goal_extraction", "validate", "goal set contains no goals", nil)
	}
	for i, goal := range g.Goals {
		if !goal.Category.Valid() {
			return services.Wrap(services.ErrValidation, "goal_extraction", "validate",
				fmt.Sprintf("goal %d has unknown category %q", i, goal.Category), nil)
		}
		if strings.TrimSpace(goal.Description) == "" {
			return services.Wrap(services.ErrValidation, "goal_extraction", "validate",
				fmt.Sprintf("goal %d has empty description", i), nil)
		}
		if err := validateAffirmation(goal.Affirmation); err != nil {
			return services.Wrap(services.ErrValidation, "goal_extraction", "validate",
				fmt.Sprintf("goal %d: %v", i, err), nil)
		}
	}
	return nil
}

// ByCategory groups goals by their life area, preserving input order within
// each group.
func (g *GoalSet) ByCategory() map[Category][]Goal {
	grouped := make(map[Category][]Goal)
	for _, goal := range g.Goals {
		grouped[goal.Category] = append(grouped[goal.Category], goal)
	}
	return grouped
}

// CoveredCategories returns the distinct life areas present in the goal set,
// sorted by the canonical category order.
func (g *GoalSet) CoveredCategories() []Category {
	present := make(map[Category]bool, len(g.Goals))
	for _, goal := range g.Goals {
		present[goal.Category] = true
	}
	covered := make([]Category, 0, len(present))
	for _, category := range Categories() {
		if present[category] {
			covered = append(covered, category)
		}
	}
	// Unknown categories should have been rejected by Validate, but keep the
	// output deterministic if they slip through.
	extras := make([]Category, 0)
	for category := range present {
		if !category.Valid() {
			extras = append(extras, category)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	return append(covered, extras...)
}

// validateAffirmation enforces present-tense first-person phrasing.
func validateAffirmation(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("empty affirmation")
	}
	if !strings.HasPrefix(trimmed, "I ") && !strings.HasPrefix(trimmed, "I'") {
		return fmt.Errorf("affirmation %q must be first person present tense", trimmed)
	}
	return nil
}
