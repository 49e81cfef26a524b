package usecase

import (
	"context"

	"github.com/samber/do"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/repository"
)

type ListEnvironmentsUsecase interface {
	Execute(ctx context.Context) ([]*entity.Environment, error)
}

type listEnvironmentsUsecaseImpl struct {
	environments repository.EnvironmentRepository
}

// Execute implements ListEnvironmentsUsecase.
func (u *listEnvironmentsUsecaseImpl) Execute(ctx context.Context) ([]*entity.Environment, error) {
	return u.environments.List(ctx)
}

func NewListEnvironmentsUsecase(injector *do.Injector) (ListEnvironmentsUsecase, error) {
	return &listEnvironmentsUsecaseImpl{
		environments: do.MustInvoke[repository.EnvironmentRepository](injector),
	}, nil
}
