// Package questionnaire conducts the model-driven visioning interview that
// feeds goal extraction, one question per turn until the model signals it has
// covered every life area.
package questionnaire
