package repository

import (
	"context"

	"github.com/yz4230/shipd/internal/entity"
	"gorm.io/gorm"
)

type ReleaseRepository interface {
	Create(ctx context.Context, rel *entity.Release) (*entity.Release, error)
	GetByID(ctx context.Context, id entity.ID) (*entity.Release, error)
	GetByUUID(ctx context.Context, uuid string) (*entity.Release, error)
	List(ctx context.Context) ([]*entity.Release, error)
	ListByEnvironment(ctx context.Context, envID entity.ID) ([]*entity.Release, error)
	Update(ctx context.Context, rel *entity.Release) (*entity.Release, error)
}

type releaseRepositoryImpl struct {
	db *gorm.DB
}

func NewReleaseRepository(db *gorm.DB) ReleaseRepository {
	return &releaseRepositoryImpl{db: db}
}

// Create appends a new release to the release log.
func (r *releaseRepositoryImpl) Create(ctx context.Context, rel *entity.Release) (*entity.Release, error) {
	var model Release
	model.FromEntity(rel)
	if err := gorm.G[Release](r.db).Create(ctx, &model); err != nil {
		return nil, err
	}
	return model.ToEntity(), nil
}

// GetByID finds a release by id.
func (r *releaseRepositoryImpl) GetByID(ctx context.Context, id entity.ID) (*entity.Release, error) {
	found, err := gorm.G[Release](r.db).Where("id = ?", id.Uint()).First(ctx)
	if err != nil {
		return nil, err
	}
	return found.ToEntity(), nil
}

// GetByUUID finds a release by its correlation uuid.
func (r *releaseRepositoryImpl) GetByUUID(ctx context.Context, uuid string) (*entity.Release, error) {
	found, err := gorm.G[Release](r.db).Where("uuid = ?", uuid).First(ctx)
	if err != nil {
		return nil, err
	}
	return found.ToEntity(), nil
}

// List returns the whole release log, newest first.
func (r *releaseRepositoryImpl) List(ctx context.Context) ([]*entity.Release, error) {
	founds, err := gorm.G[Release](r.db).Order("id DESC").Find(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]*entity.Release, len(founds))
	for i, f := range founds {
		res[i] = f.ToEntity()
	}
	return res, nil
}

// ListByEnvironment lists releases attempted against one environment.
func (r *releaseRepositoryImpl) ListByEnvironment(ctx context.Context, envID entity.ID) ([]*entity.Release, error) {
	founds, err := gorm.G[Release](r.db).Where("environment_id = ?", envID.Uint()).Order("id DESC").Find(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]*entity.Release, len(founds))
	for i, f := range founds {
		res[i] = f.ToEntity()
	}
	return res, nil
}

// Update writes back status, reason and phase timestamps.
func (r *releaseRepositoryImpl) Update(ctx context.Context, rel *entity.Release) (*entity.Release, error) {
	var model Release
	model.FromEntity(rel)
	_, err := gorm.G[Release](r.db).Where("id = ?", rel.ID.Uint()).Updates(ctx, model)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, rel.ID)
}
