package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/do"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/repository"
	"github.com/yz4230/shipd/internal/usecase"
)

func RegisterRestAPI(injector *do.Injector, e *echo.Echo) {
	g := e.Group("/api")

	g.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	g.POST("/environments", func(c echo.Context) error {
		type request struct {
			Name            string `json:"name"`
			RepoURL         string `json:"repo_url"`
			ImageName       string `json:"image_name"`
			Host            string `json:"host"`
			TargetURL       string `json:"target_url"`
			RegistryPrefix  string `json:"registry_prefix"`
			RegistryAuthRef string `json:"registry_auth_ref"`
			DatabaseDSN     string `json:"database_dsn"`
		}
		var req request
		if err := c.Bind(&req); err != nil {
			return c.NoContent(http.StatusBadRequest)
		}

		usecase := do.MustInvoke[usecase.CreateEnvironmentUsecase](injector)
		env, err := usecase.Execute(c.Request().Context(), &entity.Environment{
			Name:            req.Name,
			RepoURL:         req.RepoURL,
			ImageName:       req.ImageName,
			Host:            req.Host,
			TargetURL:       req.TargetURL,
			RegistryPrefix:  req.RegistryPrefix,
			RegistryAuthRef: req.RegistryAuthRef,
			DatabaseDSN:     req.DatabaseDSN,
		})
		if err != nil {
			if errors.Is(err, entity.ErrInvalid) {
				return c.NoContent(http.StatusBadRequest)
			}
			if errors.Is(err, entity.ErrConflict) {
				return c.NoContent(http.StatusConflict)
			}
			return c.NoContent(http.StatusInternalServerError)
		}

		return c.JSON(http.StatusCreated, env)
	})

	g.GET("/environments", func(c echo.Context) error {
		usecase := do.MustInvoke[usecase.ListEnvironmentsUsecase](injector)
		envs, err := usecase.Execute(c.Request().Context())
		if err != nil {
			return c.NoContent(http.StatusInternalServerError)
		}

		type response struct {
			Environments []*entity.Environment `json:"environments"`
		}
		return c.JSON(http.StatusOK, &response{Environments: envs})
	})

	// the CI event source posts here with {environment, revision}
	g.POST("/deployments", func(c echo.Context) error {
		type request struct {
			Environment string `json:"environment"`
			Revision    string `json:"revision"`
		}
		var req request
		if err := c.Bind(&req); err != nil {
			return c.NoContent(http.StatusBadRequest)
		}

		usecase := do.MustInvoke[usecase.TriggerDeploymentUsecase](injector)
		rel, err := usecase.Execute(c.Request().Context(), req.Environment, req.Revision)
		if err != nil {
			if errors.Is(err, entity.ErrInvalid) {
				return c.NoContent(http.StatusBadRequest)
			}
			if errors.Is(err, repository.ErrNotFound) {
				return c.NoContent(http.StatusNotFound)
			}
			return c.NoContent(http.StatusInternalServerError)
		}

		return c.JSON(http.StatusAccepted, rel)
	})

	g.GET("/releases", func(c echo.Context) error {
		usecase := do.MustInvoke[usecase.ListReleasesUsecase](injector)
		var envID entity.ID
		if v := c.QueryParam("environment_id"); v != "" {
			envID = entity.NewID(v)
		}
		rels, err := usecase.Execute(c.Request().Context(), envID)
		if err != nil {
			return c.NoContent(http.StatusInternalServerError)
		}

		type response struct {
			Releases []*entity.Release `json:"releases"`
		}
		return c.JSON(http.StatusOK, &response{Releases: rels})
	})

	g.GET("/releases/:id", func(c echo.Context) error {
		usecase := do.MustInvoke[usecase.GetReleaseUsecase](injector)
		rel, err := usecase.Execute(c.Request().Context(), entity.NewID(c.Param("id")))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return c.NoContent(http.StatusNotFound)
			}
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, rel)
	})
}
