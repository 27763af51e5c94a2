// Package testsupport builds temp-dir seeded configurations for package
// tests.
package testsupport
