// Package domain contains the core business entities and rules for the
// Quarry retrieval engine. It has no dependencies on infrastructure.
package domain
