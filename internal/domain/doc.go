// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (notification.go, topic.go, dedup.go, errors.go) hold shared types and
// the cross-cutting contracts that adapters implement. No implementation code beyond small helpers.
package domain
