package usecase

import (
	"context"
	"errors"

	"github.com/samber/do"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/repository"
	"github.com/yz4230/shipd/internal/utils"
)

type CreateEnvironmentUsecase interface {
	Execute(ctx context.Context, env *entity.Environment) (*entity.Environment, error)
}

type createEnvironmentUsecaseImpl struct {
	environments repository.EnvironmentRepository
}

// Execute implements CreateEnvironmentUsecase.
func (u *createEnvironmentUsecaseImpl) Execute(ctx context.Context, env *entity.Environment) (*entity.Environment, error) {
	env.Name = utils.SanitizeName(env.Name)
	if env.Name == "" || env.RepoURL == "" || env.ImageName == "" || env.TargetURL == "" {
		return nil, entity.ErrInvalid
	}
	if _, err := u.environments.GetByName(ctx, env.Name); err == nil {
		return nil, entity.ErrConflict
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return u.environments.Create(ctx, env)
}

func NewCreateEnvironmentUsecase(injector *do.Injector) (CreateEnvironmentUsecase, error) {
	return &createEnvironmentUsecaseImpl{
		environments: do.MustInvoke[repository.EnvironmentRepository](injector),
	}, nil
}
