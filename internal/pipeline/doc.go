// Package pipeline sequences a run through goal extraction, scene generation,
// asset generation, and composition. Every stage transition is durable before
// the next stage starts, so an interrupted run resumes from its last
// completed step.
package pipeline
