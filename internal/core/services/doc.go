// Package services implements the core business logic: ingestion,
// hybrid search, structured table queries and document management.
// Services depend only on the port interfaces, never on concrete
// adapters.
package services
