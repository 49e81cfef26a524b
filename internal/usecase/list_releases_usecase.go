package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/repository"
)

type ListReleasesUsecase interface {
	Execute(ctx context.Context, envID entity.ID) ([]*entity.Release, error)
}

type listReleasesUsecaseImpl struct {
	releases repository.ReleaseRepository
}

// Execute lists the release log, optionally scoped to one environment.
func (u *listReleasesUsecaseImpl) Execute(ctx context.Context, envID entity.ID) ([]*entity.Release, error) {
	if envID.IsZero() {
		return u.releases.List(ctx)
	}
	return u.releases.ListByEnvironment(ctx, envID)
}

func NewListReleasesUsecase(injector *do.Injector) (ListReleasesUsecase, error) {
	return &listReleasesUsecaseImpl{
		releases: do.MustInvoke[repository.ReleaseRepository](injector),
	}, nil
}
