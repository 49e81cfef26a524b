package repository

import (
	"time"

	"github.com/yz4230/shipd/internal/entity"
	"gorm.io/gorm"
)

type Release struct {
	gorm.Model
	UUID           string `gorm:"uniqueIndex"`
	EnvironmentID  uint   `gorm:"index"`
	SourceRevision string
	ImageRef       string
	RegistryRef    string
	Status         string
	Reason         string
	BuildingAt     *time.Time
	TransportingAt *time.Time
	MigratingAt    *time.Time
	HealthCheckAt  *time.Time
	FinishedAt     *time.Time
}

func (r *Release) ToEntity() *entity.Release {
	return &entity.Release{
		ID:             entity.NewID(r.ID),
		UUID:           r.UUID,
		EnvironmentID:  entity.NewID(r.EnvironmentID),
		SourceRevision: r.SourceRevision,
		ImageRef:       r.ImageRef,
		RegistryRef:    r.RegistryRef,
		Status:         entity.ReleaseStatus(r.Status),
		Reason:         r.Reason,
		BuildingAt:     r.BuildingAt,
		TransportingAt: r.TransportingAt,
		MigratingAt:    r.MigratingAt,
		HealthCheckAt:  r.HealthCheckAt,
		FinishedAt:     r.FinishedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (r *Release) FromEntity(e *entity.Release) {
	if !e.ID.IsZero() {
		r.ID = e.ID.Uint()
	}
	r.UUID = e.UUID
	r.EnvironmentID = e.EnvironmentID.Uint()
	r.SourceRevision = e.SourceRevision
	r.ImageRef = e.ImageRef
	r.RegistryRef = e.RegistryRef
	r.Status = string(e.Status)
	r.Reason = e.Reason
	r.BuildingAt = e.BuildingAt
	r.TransportingAt = e.TransportingAt
	r.MigratingAt = e.MigratingAt
	r.HealthCheckAt = e.HealthCheckAt
	r.FinishedAt = e.FinishedAt
}

type Environment struct {
	gorm.Model
	Name              string `gorm:"uniqueIndex"`
	RepoURL           string
	ImageName         string
	Host              string
	TargetURL         string
	RegistryPrefix    string
	RegistryAuthRef   string
	DatabaseDSN       string
	LiveReleaseID     *uint
	PreviousReleaseID *uint
}

func (e *Environment) ToEntity() *entity.Environment {
	env := &entity.Environment{
		ID:              entity.NewID(e.ID),
		Name:            e.Name,
		RepoURL:         e.RepoURL,
		ImageName:       e.ImageName,
		Host:            e.Host,
		TargetURL:       e.TargetURL,
		RegistryPrefix:  e.RegistryPrefix,
		RegistryAuthRef: e.RegistryAuthRef,
		DatabaseDSN:     e.DatabaseDSN,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if e.LiveReleaseID != nil {
		env.LiveReleaseID = entity.NewID(*e.LiveReleaseID)
	}
	if e.PreviousReleaseID != nil {
		env.PreviousReleaseID = entity.NewID(*e.PreviousReleaseID)
	}
	return env
}

func (e *Environment) FromEntity(env *entity.Environment) {
	if !env.ID.IsZero() {
		e.ID = env.ID.Uint()
	}
	e.Name = env.Name
	e.RepoURL = env.RepoURL
	e.ImageName = env.ImageName
	e.Host = env.Host
	e.TargetURL = env.TargetURL
	e.RegistryPrefix = env.RegistryPrefix
	e.RegistryAuthRef = env.RegistryAuthRef
	e.DatabaseDSN = env.DatabaseDSN
	e.LiveReleaseID = nil
	if !env.LiveReleaseID.IsZero() {
		id := env.LiveReleaseID.Uint()
		e.LiveReleaseID = &id
	}
	e.PreviousReleaseID = nil
	if !env.PreviousReleaseID.IsZero() {
		id := env.PreviousReleaseID.Uint()
		e.PreviousReleaseID = &id
	}
}

type MigrationRecord struct {
	gorm.Model
	EnvironmentID uint   `gorm:"uniqueIndex:idx_env_migration"`
	MigrationID   string `gorm:"uniqueIndex:idx_env_migration"`
	Checksum      string
	AppliedAt     time.Time
}

func (m *MigrationRecord) ToEntity() *entity.MigrationRecord {
	return &entity.MigrationRecord{
		EnvironmentID: entity.NewID(m.EnvironmentID),
		MigrationID:   m.MigrationID,
		Checksum:      m.Checksum,
		AppliedAt:     m.AppliedAt,
	}
}

func (m *MigrationRecord) FromEntity(e *entity.MigrationRecord) {
	m.EnvironmentID = e.EnvironmentID.Uint()
	m.MigrationID = e.MigrationID
	m.Checksum = e.Checksum
	m.AppliedAt = e.AppliedAt
}
