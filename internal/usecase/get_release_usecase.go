package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/repository"
)

type GetReleaseUsecase interface {
	Execute(ctx context.Context, id entity.ID) (*entity.Release, error)
}

type getReleaseUsecaseImpl struct {
	releases repository.ReleaseRepository
}

// Execute implements GetReleaseUsecase.
func (u *getReleaseUsecaseImpl) Execute(ctx context.Context, id entity.ID) (*entity.Release, error) {
	return u.releases.GetByID(ctx, id)
}

func NewGetReleaseUsecase(injector *do.Injector) (GetReleaseUsecase, error) {
	return &getReleaseUsecaseImpl{
		releases: do.MustInvoke[repository.ReleaseRepository](injector),
	}, nil
}
