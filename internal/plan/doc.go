// Package plan defines the goal and scene models produced by the planning
// stages and the validation rules that keep downstream stages safe.
package plan
