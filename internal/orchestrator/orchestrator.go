package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/yz4230/shipd/internal/builder"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/healthgate"
	"github.com/yz4230/shipd/internal/repository"
	"github.com/yz4230/shipd/internal/transport"
)

// MigrationRunner applies pending schema changes for one environment.
type MigrationRunner interface {
	Apply(ctx context.Context, env *entity.Environment) (int, error)
}

type Config struct {
	BuildTimeout     time.Duration
	TransportTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BuildTimeout:     10 * time.Minute,
		TransportTimeout: 5 * time.Minute,
	}
}

// Orchestrator sequences build, transport, migration and health
// gating into one release transaction with rollback on failure. It is
// the sole owner of release status transitions and of the
// environment's live/previous pointers.
type Orchestrator struct {
	releases     repository.ReleaseRepository
	environments repository.EnvironmentRepository
	builder      builder.Builder
	transport    transport.Transport
	gate         healthgate.Gate
	migrations   MigrationRunner
	locks        *namedLocks
	cfg          Config
}

func New(
	releases repository.ReleaseRepository,
	environments repository.EnvironmentRepository,
	b builder.Builder,
	t transport.Transport,
	gate healthgate.Gate,
	migrations MigrationRunner,
	cfg Config,
) *Orchestrator {
	return &Orchestrator{
		releases:     releases,
		environments: environments,
		builder:      b,
		transport:    t,
		gate:         gate,
		migrations:   migrations,
		locks:        newNamedLocks(),
		cfg:          cfg,
	}
}

// Submit records a pending release for the named environment. A
// cancelled context aborts before any side effect.
func (o *Orchestrator) Submit(ctx context.Context, envName, revision string) (*entity.Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if envName == "" || revision == "" {
		return nil, fmt.Errorf("%w: environment and revision are required", entity.ErrInvalid)
	}
	env, err := o.environments.GetByName(ctx, envName)
	if err != nil {
		return nil, err
	}
	return o.releases.Create(ctx, &entity.Release{
		UUID:           uuid.NewString(),
		EnvironmentID:  env.ID,
		SourceRevision: revision,
		Status:         entity.ReleaseStatusPending,
	})
}

// Deploy runs one release transaction to completion.
func (o *Orchestrator) Deploy(ctx context.Context, envName, revision string) (*entity.Release, error) {
	rel, err := o.Submit(ctx, envName, revision)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, rel.ID)
}

// Run executes the state machine for a pending release. Exactly one
// release runs at a time per environment; a second caller blocks
// until the first transaction's environment state is final.
func (o *Orchestrator) Run(ctx context.Context, releaseID entity.ID) (*entity.Release, error) {
	rel, err := o.releases.GetByID(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if rel.Status.Terminal() {
		return rel, nil
	}
	env, err := o.environments.GetByID(ctx, rel.EnvironmentID)
	if err != nil {
		return nil, err
	}

	unlock := o.locks.lock(env.Name)
	defer unlock()

	// the previous transaction may have moved the pointers
	if env, err = o.environments.GetByID(ctx, rel.EnvironmentID); err != nil {
		return nil, err
	}

	log := zerolog.Ctx(ctx).With().
		Str("release", rel.UUID).
		Str("environment", env.Name).
		Str("revision", rel.SourceRevision).
		Logger()
	ctx = log.WithContext(ctx)

	return o.run(ctx, rel, env)
}

func (o *Orchestrator) run(ctx context.Context, rel *entity.Release, env *entity.Environment) (*entity.Release, error) {
	log := zerolog.Ctx(ctx)

	// build
	rel, err := o.advance(ctx, rel, entity.ReleaseStatusBuilding)
	if err != nil {
		return o.fail(ctx, rel, err), err
	}
	buildCtx, cancel := context.WithTimeout(ctx, o.cfg.BuildTimeout)
	imageRef, err := o.builder.Build(buildCtx, builder.Request{
		RepoURL:     env.RepoURL,
		Revision:    rel.SourceRevision,
		ImageName:   env.ImageName,
		ReleaseUUID: rel.UUID,
	})
	cancel()
	if err != nil {
		return o.fail(ctx, rel, err), err
	}
	rel.ImageRef = imageRef

	// transport: push to the registry, pull onto the host. Failure
	// here leaves the environment untouched, so no rollback.
	rel, err = o.advance(ctx, rel, entity.ReleaseStatusTransporting)
	if err != nil {
		return o.fail(ctx, rel, err), err
	}
	transportCtx, cancel := context.WithTimeout(ctx, o.cfg.TransportTimeout)
	registryRef, err := o.transport.Push(transportCtx, imageRef, env)
	if err == nil {
		rel.RegistryRef = registryRef
		err = o.transport.Pull(transportCtx, registryRef, env)
	}
	cancel()
	if err != nil {
		return o.fail(ctx, rel, err), err
	}

	// migrate: forward-only; a failure from here on is eligible for
	// rollback to the previous live artifact.
	rel, err = o.advance(ctx, rel, entity.ReleaseStatusMigrating)
	if err != nil {
		return o.fail(ctx, rel, err), err
	}
	applied, err := o.migrations.Apply(ctx, env)
	if err != nil {
		if errors.Is(err, entity.ErrChecksumConflict) {
			log.Error().Err(err).Msg("ALERT: migration checksum conflict, operator intervention required")
			return o.fail(ctx, rel, err), err
		}
		return o.rollback(ctx, rel, env, err)
	}
	log.Info().Int("applied", applied).Msg("migrations up to date")

	// health gate: activate the new artifact and wait for readiness
	rel, err = o.advance(ctx, rel, entity.ReleaseStatusHealthChecking)
	if err != nil {
		return o.fail(ctx, rel, err), err
	}
	if err := o.transport.Activate(ctx, rel.RegistryRef, env, rel); err != nil {
		return o.rollback(ctx, rel, env, err)
	}
	if _, err := o.gate.WaitHealthy(ctx, env.TargetURL); err != nil {
		return o.rollback(ctx, rel, env, err)
	}

	// live: swap the environment pointers
	env.PreviousReleaseID = env.LiveReleaseID
	env.LiveReleaseID = rel.ID
	if _, err := o.environments.Update(ctx, env); err != nil {
		return o.fail(ctx, rel, err), err
	}
	now := time.Now().UTC()
	rel.FinishedAt = &now
	rel.Status = entity.ReleaseStatusLive
	rel, err = o.releases.Update(ctx, rel)
	if err != nil {
		return rel, err
	}
	log.Info().Msg("release is live")
	return rel, nil
}

// rollback re-transports the previous live artifact and gates it.
// Migrations are not reversed. Returns the cause; a rollback that
// itself fails is terminal and operator-visible.
func (o *Orchestrator) rollback(ctx context.Context, rel *entity.Release, env *entity.Environment, cause error) (*entity.Release, error) {
	log := zerolog.Ctx(ctx)

	if env.LiveReleaseID.IsZero() {
		log.Error().Err(cause).Msg("ALERT: deployment failed with no previous release to roll back to")
		return o.fail(ctx, rel, cause), cause
	}

	prev, err := o.releases.GetByID(ctx, env.LiveReleaseID)
	if err != nil {
		wrapped := fmt.Errorf("%w: load previous release: %v (cause: %v)", entity.ErrRollbackFailed, err, cause)
		log.Error().Err(wrapped).Msg("ALERT: rollback failed, operator intervention required")
		return o.fail(ctx, rel, wrapped), wrapped
	}

	log.Warn().Err(cause).Str("previous", prev.UUID).Msg("rolling back to previous release")

	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.TransportTimeout)
	defer cancel()
	err = o.transport.Pull(rollbackCtx, prev.RegistryRef, env)
	if err == nil {
		err = o.transport.Activate(rollbackCtx, prev.RegistryRef, env, prev)
	}
	if err == nil {
		_, err = o.gate.WaitHealthy(rollbackCtx, env.TargetURL)
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %v (cause: %v)", entity.ErrRollbackFailed, err, cause)
		log.Error().Err(wrapped).Msg("ALERT: rollback failed, operator intervention required")
		return o.fail(ctx, rel, wrapped), wrapped
	}

	now := time.Now().UTC()
	rel.Status = entity.ReleaseStatusRolledBack
	rel.Reason = cause.Error()
	rel.FinishedAt = &now
	if rel2, uerr := o.releases.Update(ctx, rel); uerr == nil {
		rel = rel2
	}
	log.Info().Str("live", prev.UUID).Msg("rollback complete, previous release still live")
	return rel, cause
}

// advance moves the release into the next phase, checking for
// between-phase cancellation first.
func (o *Orchestrator) advance(ctx context.Context, rel *entity.Release, status entity.ReleaseStatus) (*entity.Release, error) {
	if err := ctx.Err(); err != nil {
		return rel, err
	}
	now := time.Now().UTC()
	rel.Status = status
	switch status {
	case entity.ReleaseStatusBuilding:
		rel.BuildingAt = &now
	case entity.ReleaseStatusTransporting:
		rel.TransportingAt = &now
	case entity.ReleaseStatusMigrating:
		rel.MigratingAt = &now
	case entity.ReleaseStatusHealthChecking:
		rel.HealthCheckAt = &now
	}
	updated, err := o.releases.Update(ctx, rel)
	if err != nil {
		return rel, err
	}
	return updated, nil
}

func (o *Orchestrator) fail(ctx context.Context, rel *entity.Release, cause error) *entity.Release {
	now := time.Now().UTC()
	rel.Status = entity.ReleaseStatusFailed
	rel.Reason = cause.Error()
	rel.FinishedAt = &now
	// status writes must survive the caller's cancellation
	updated, err := o.releases.Update(context.WithoutCancel(ctx), rel)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("release", rel.UUID).Msg("failed to record release failure")
		return rel
	}
	return updated
}
