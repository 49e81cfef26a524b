package usecase

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/do"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/orchestrator"
)

// TriggerDeploymentUsecase is the CI event entry point: it records a
// pending release and runs the transaction in the background.
type TriggerDeploymentUsecase interface {
	Execute(ctx context.Context, envName, revision string) (*entity.Release, error)
}

type triggerDeploymentUsecaseImpl struct {
	orchestrator *orchestrator.Orchestrator
}

// Execute implements TriggerDeploymentUsecase.
func (u *triggerDeploymentUsecaseImpl) Execute(ctx context.Context, envName, revision string) (*entity.Release, error) {
	rel, err := u.orchestrator.Submit(ctx, envName, revision)
	if err != nil {
		return nil, err
	}

	// detach from the request: the transaction outlives the HTTP call
	log := zerolog.Ctx(ctx).With().Str("release", rel.UUID).Logger()
	runCtx := log.WithContext(context.WithoutCancel(ctx))
	go func() {
		if _, err := u.orchestrator.Run(runCtx, rel.ID); err != nil {
			log.Error().Err(err).Msg("deployment finished with error")
		}
	}()

	return rel, nil
}

func NewTriggerDeploymentUsecase(injector *do.Injector) (TriggerDeploymentUsecase, error) {
	return &triggerDeploymentUsecaseImpl{
		orchestrator: do.MustInvoke[*orchestrator.Orchestrator](injector),
	}, nil
}
