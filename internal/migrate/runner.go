package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Applier executes a migration statement against an environment's
// application store.
type Applier interface {
	Exec(ctx context.Context, stmt string) error
}

type gormApplier struct {
	db *gorm.DB
}

func (a gormApplier) Exec(ctx context.Context, stmt string) error {
	return a.db.WithContext(ctx).Exec(stmt).Error
}

func openSQLiteTarget(dsn string) (Applier, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return gormApplier{db: db}, nil
}

// Runner applies migrations exactly once per environment. Migrations
// are forward-only; nothing here can reverse one.
type Runner struct {
	records    repository.MigrationRecordRepository
	dir        string
	openTarget func(dsn string) (Applier, error)

	// serializes Apply so the serve command and the migrate command
	// cannot interleave schema changes on one process.
	mu sync.Mutex
}

func NewRunner(records repository.MigrationRecordRepository, dir string) *Runner {
	return &Runner{
		records:    records,
		dir:        dir,
		openTarget: openSQLiteTarget,
	}
}

// Apply loads the migration set from the runner's directory and
// applies whatever the environment has not seen yet.
func (r *Runner) Apply(ctx context.Context, env *entity.Environment) (int, error) {
	set, err := Load(r.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", entity.ErrMigrationFailed, err)
	}
	return r.ApplySet(ctx, env, set)
}

// ApplySet walks the set in declared order: a matching record skips
// the migration, a checksum mismatch under a reused identifier fails
// the run, anything else is applied and recorded. Returns the number
// actually applied; re-running an identical set returns 0.
func (r *Runner) ApplySet(ctx context.Context, env *entity.Environment, set []entity.Migration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := zerolog.Ctx(ctx)

	var target Applier
	applied := 0
	for _, m := range set {
		rec, err := r.records.Get(ctx, env.ID, m.ID)
		if err == nil {
			if rec.Checksum != m.Checksum {
				return applied, fmt.Errorf("%w: %s applied with checksum %s, requested %s",
					entity.ErrChecksumConflict, m.ID, rec.Checksum, m.Checksum)
			}
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return applied, fmt.Errorf("%w: read record %s: %v", entity.ErrMigrationFailed, m.ID, err)
		}

		if target == nil {
			target, err = r.openTarget(env.DatabaseDSN)
			if err != nil {
				return applied, fmt.Errorf("%w: open target store: %v", entity.ErrMigrationFailed, err)
			}
		}
		if err := target.Exec(ctx, m.SQL); err != nil {
			return applied, fmt.Errorf("%w: apply %s: %v", entity.ErrMigrationFailed, m.ID, err)
		}
		if _, err := r.records.Create(ctx, &entity.MigrationRecord{
			EnvironmentID: env.ID,
			MigrationID:   m.ID,
			Checksum:      m.Checksum,
			AppliedAt:     time.Now().UTC(),
		}); err != nil {
			return applied, fmt.Errorf("%w: record %s: %v", entity.ErrMigrationFailed, m.ID, err)
		}
		applied++
		log.Info().Str("migration", m.ID).Str("environment", env.Name).Msg("applied migration")
	}
	return applied, nil
}
