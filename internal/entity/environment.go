package entity

import "time"

// Environment is a named deployment target with at most one live
// release. RegistryAuthRef holds an opaque secret handle, never a
// credential value.
type Environment struct {
	ID                ID        `json:"id"`
	Name              string    `json:"name"`
	RepoURL           string    `json:"repo_url"`
	ImageName         string    `json:"image_name"`
	Host              string    `json:"host"`
	TargetURL         string    `json:"target_url"`
	RegistryPrefix    string    `json:"registry_prefix"`
	RegistryAuthRef   string    `json:"registry_auth_ref,omitempty"`
	DatabaseDSN       string    `json:"database_dsn,omitempty"`
	LiveReleaseID     ID        `json:"live_release_id,omitempty"`
	PreviousReleaseID ID        `json:"previous_release_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
