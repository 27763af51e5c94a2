// Package notifications pushes pipeline milestones to ntfy. Without a
// configured topic every call is a no-op.
package notifications
