// Package app holds process-level background jobs that sit beside the relay's request paths.
package app
