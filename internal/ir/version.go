package ir

// Version constants for the contact schema and service.
const (
	// SchemaVersion is the contacts table schema version.
	// Stored in SQLite PRAGMA user_version.
	SchemaVersion = 1

	// ServiceVersion is the idlink service version.
	ServiceVersion = "0.1.0"
)
