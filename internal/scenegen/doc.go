// Package scenegen drives the two planning stages: distilling the interview
// into goals, then expanding goals into a storyboard of video prompts.
package scenegen
