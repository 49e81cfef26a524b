package repository

import (
	"context"

	"github.com/yz4230/shipd/internal/entity"
	"gorm.io/gorm"
)

type MigrationRecordRepository interface {
	Get(ctx context.Context, envID entity.ID, migrationID string) (*entity.MigrationRecord, error)
	Create(ctx context.Context, rec *entity.MigrationRecord) (*entity.MigrationRecord, error)
	ListByEnvironment(ctx context.Context, envID entity.ID) ([]*entity.MigrationRecord, error)
}

type migrationRecordRepositoryImpl struct {
	db *gorm.DB
}

func NewMigrationRecordRepository(db *gorm.DB) MigrationRecordRepository {
	return &migrationRecordRepositoryImpl{db: db}
}

// Get implements MigrationRecordRepository.
func (r *migrationRecordRepositoryImpl) Get(ctx context.Context, envID entity.ID, migrationID string) (*entity.MigrationRecord, error) {
	found, err := gorm.G[MigrationRecord](r.db).
		Where("environment_id = ? AND migration_id = ?", envID.Uint(), migrationID).
		First(ctx)
	if err != nil {
		return nil, err
	}
	return found.ToEntity(), nil
}

// Create implements MigrationRecordRepository.
func (r *migrationRecordRepositoryImpl) Create(ctx context.Context, rec *entity.MigrationRecord) (*entity.MigrationRecord, error) {
	var model MigrationRecord
	model.FromEntity(rec)
	if err := gorm.G[MigrationRecord](r.db).Create(ctx, &model); err != nil {
		return nil, err
	}
	return model.ToEntity(), nil
}

// ListByEnvironment implements MigrationRecordRepository.
func (r *migrationRecordRepositoryImpl) ListByEnvironment(ctx context.Context, envID entity.ID) ([]*entity.MigrationRecord, error) {
	founds, err := gorm.G[MigrationRecord](r.db).
		Where("environment_id = ?", envID.Uint()).
		Order("migration_id ASC").
		Find(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]*entity.MigrationRecord, len(founds))
	for i, f := range founds {
		res[i] = f.ToEntity()
	}
	return res, nil
}
