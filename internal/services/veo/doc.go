// Package veo generates video clips through Google's Veo long-running
// operation API: submit a prompt, poll the operation, download the result.
package veo
