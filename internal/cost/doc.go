// Package cost estimates video generation spend from provider pricing tables
// so the user can confirm before any paid API call is made.
package cost
