package entity

import "time"

type ReleaseStatus string

const (
	ReleaseStatusPending        ReleaseStatus = "pending"
	ReleaseStatusBuilding       ReleaseStatus = "building"
	ReleaseStatusTransporting   ReleaseStatus = "transporting"
	ReleaseStatusMigrating      ReleaseStatus = "migrating"
	ReleaseStatusHealthChecking ReleaseStatus = "health-checking"
	ReleaseStatusLive           ReleaseStatus = "live"
	ReleaseStatusRolledBack     ReleaseStatus = "rolled-back"
	ReleaseStatusFailed         ReleaseStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s ReleaseStatus) Terminal() bool {
	switch s {
	case ReleaseStatusLive, ReleaseStatusRolledBack, ReleaseStatusFailed:
		return true
	}
	return false
}

// Release is one attempt to deploy a specific artifact to an environment.
// Records are append-only from the caller's perspective; only the
// orchestrator mutates status and the phase timestamps.
type Release struct {
	ID             ID               `json:"id"`
	UUID           string           `json:"uuid"`
	EnvironmentID  ID               `json:"environment_id"`
	SourceRevision string           `json:"source_revision"`
	ImageRef       string           `json:"image_ref"`
	RegistryRef    string           `json:"registry_ref"`
	Status         ReleaseStatus    `json:"status"`
	Reason         string           `json:"reason,omitempty"`
	BuildingAt     *time.Time       `json:"building_at,omitempty"`
	TransportingAt *time.Time       `json:"transporting_at,omitempty"`
	MigratingAt    *time.Time       `json:"migrating_at,omitempty"`
	HealthCheckAt  *time.Time       `json:"health_check_at,omitempty"`
	FinishedAt     *time.Time       `json:"finished_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
