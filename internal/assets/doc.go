// Package assets fans scene clips out to a video generator with bounded
// concurrency, retrying transient provider failures and checkpointing every
// item transition so interrupted runs resume without regenerating finished
// clips.
package assets
