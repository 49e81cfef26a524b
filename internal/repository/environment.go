package repository

import (
	"context"

	"github.com/yz4230/shipd/internal/entity"
	"gorm.io/gorm"
)

type EnvironmentRepository interface {
	Create(ctx context.Context, env *entity.Environment) (*entity.Environment, error)
	GetByID(ctx context.Context, id entity.ID) (*entity.Environment, error)
	GetByName(ctx context.Context, name string) (*entity.Environment, error)
	List(ctx context.Context) ([]*entity.Environment, error)
	Update(ctx context.Context, env *entity.Environment) (*entity.Environment, error)
}

type environmentRepositoryImpl struct {
	db *gorm.DB
}

func NewEnvironmentRepository(db *gorm.DB) EnvironmentRepository {
	return &environmentRepositoryImpl{db: db}
}

// Create implements EnvironmentRepository.
func (r *environmentRepositoryImpl) Create(ctx context.Context, env *entity.Environment) (*entity.Environment, error) {
	var model Environment
	model.FromEntity(env)
	if err := gorm.G[Environment](r.db).Create(ctx, &model); err != nil {
		return nil, err
	}
	return model.ToEntity(), nil
}

// GetByID implements EnvironmentRepository.
func (r *environmentRepositoryImpl) GetByID(ctx context.Context, id entity.ID) (*entity.Environment, error) {
	found, err := gorm.G[Environment](r.db).Where("id = ?", id.Uint()).First(ctx)
	if err != nil {
		return nil, err
	}
	return found.ToEntity(), nil
}

// GetByName implements EnvironmentRepository.
func (r *environmentRepositoryImpl) GetByName(ctx context.Context, name string) (*entity.Environment, error) {
	found, err := gorm.G[Environment](r.db).Where("name = ?", name).First(ctx)
	if err != nil {
		return nil, err
	}
	return found.ToEntity(), nil
}

// List implements EnvironmentRepository.
func (r *environmentRepositoryImpl) List(ctx context.Context) ([]*entity.Environment, error) {
	founds, err := gorm.G[Environment](r.db).Find(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]*entity.Environment, len(founds))
	for i, f := range founds {
		res[i] = f.ToEntity()
	}
	return res, nil
}

// Update writes back the mutable live/previous pointers. Only the
// orchestrator calls this after a successful or rolled-back release.
func (r *environmentRepositoryImpl) Update(ctx context.Context, env *entity.Environment) (*entity.Environment, error) {
	var model Environment
	model.FromEntity(env)
	err := r.db.WithContext(ctx).Model(&Environment{}).Where("id = ?", env.ID.Uint()).
		Select("RepoURL", "ImageName", "Host", "TargetURL", "RegistryPrefix",
			"RegistryAuthRef", "DatabaseDSN", "LiveReleaseID", "PreviousReleaseID").
		Updates(&model).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, env.ID)
}
