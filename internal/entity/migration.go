package entity

import "time"

// Migration is one schema change, identified by its filename stem and
// fingerprinted by the sha256 of its content.
type Migration struct {
	ID       string
	SQL      string
	Checksum string
}

// MigrationRecord marks a migration as applied in one environment.
// A given migration id is applied at most once per environment.
type MigrationRecord struct {
	EnvironmentID ID
	MigrationID   string
	Checksum      string
	AppliedAt     time.Time
}
