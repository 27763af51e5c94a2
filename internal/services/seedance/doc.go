// Package seedance generates video clips through the BytePlus content
// generation task API.
package seedance
