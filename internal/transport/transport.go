package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/secret"
)

// Transport moves a built artifact through the registry onto the
// target host and swaps the running container. Push and Pull retry
// transient failures with bounded exponential backoff; authentication
// and not-found failures surface immediately.
type Transport interface {
	Push(ctx context.Context, imageRef string, env *entity.Environment) (string, error)
	Pull(ctx context.Context, registryRef string, env *entity.Environment) error
	Activate(ctx context.Context, registryRef string, env *entity.Environment, rel *entity.Release) error
}

type dockerAPI interface {
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, image string, options image.PushOptions) (io.ReadCloser, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
}

type Config struct {
	MaxRetries    uint64
	RetryInterval time.Duration
}

func DefaultConfig() Config {
	return Config{MaxRetries: 3, RetryInterval: time.Second}
}

type dockerTransport struct {
	local   dockerAPI
	remote  func(host string) (dockerAPI, error)
	secrets secret.Resolver
	cfg     Config
}

// New returns a Transport using the local daemon for pushes and the
// environment's host daemon for pulls and activation.
func New(local dockerAPI, secrets secret.Resolver, cfg Config) Transport {
	return &dockerTransport{
		local:   local,
		remote:  dialHost,
		secrets: secrets,
		cfg:     cfg,
	}
}

func dialHost(host string) (dockerAPI, error) {
	if host == "" {
		return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	}
	return client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
}

// Push tags imageRef into the environment's registry namespace and
// pushes it, returning the registry reference.
func (t *dockerTransport) Push(ctx context.Context, imageRef string, env *entity.Environment) (string, error) {
	log := zerolog.Ctx(ctx)

	registryRef := imageRef
	if env.RegistryPrefix != "" {
		registryRef = fmt.Sprintf("%s/%s", strings.TrimSuffix(env.RegistryPrefix, "/"), imageRef)
	}
	if err := t.local.ImageTag(ctx, imageRef, registryRef); err != nil {
		return "", &entity.TransportError{Op: "push", Transient: false, Err: fmt.Errorf("tag %s: %w", registryRef, err)}
	}

	auth, err := t.registryAuth(ctx, env)
	if err != nil {
		return "", &entity.TransportError{Op: "push", Transient: false, Err: err}
	}

	err = t.withRetry(ctx, func() error {
		body, err := t.local.ImagePush(ctx, registryRef, image.PushOptions{RegistryAuth: auth})
		if err != nil {
			return err
		}
		defer body.Close()
		return drainStream(body)
	})
	if err != nil {
		return "", &entity.TransportError{Op: "push", Transient: !permanent(err), Err: err}
	}

	log.Info().Str("ref", registryRef).Msg("pushed image to registry")
	return registryRef, nil
}

// Pull fetches registryRef onto the environment's target host.
func (t *dockerTransport) Pull(ctx context.Context, registryRef string, env *entity.Environment) error {
	log := zerolog.Ctx(ctx)

	host, err := t.remote(env.Host)
	if err != nil {
		return &entity.TransportError{Op: "pull", Transient: false, Err: fmt.Errorf("dial host %s: %w", env.Host, err)}
	}
	auth, err := t.registryAuth(ctx, env)
	if err != nil {
		return &entity.TransportError{Op: "pull", Transient: false, Err: err}
	}

	err = t.withRetry(ctx, func() error {
		body, err := host.ImagePull(ctx, registryRef, image.PullOptions{RegistryAuth: auth})
		if err != nil {
			return err
		}
		defer body.Close()
		return drainStream(body)
	})
	if err != nil {
		return &entity.TransportError{Op: "pull", Transient: !permanent(err), Err: err}
	}

	log.Info().Str("ref", registryRef).Str("host", env.Host).Msg("pulled image onto host")
	return nil
}

// Activate replaces the environment's running container with one from
// registryRef. Not retried: a partial swap must surface so the
// orchestrator can decide on rollback.
func (t *dockerTransport) Activate(ctx context.Context, registryRef string, env *entity.Environment, rel *entity.Release) error {
	log := zerolog.Ctx(ctx)

	host, err := t.remote(env.Host)
	if err != nil {
		return &entity.TransportError{Op: "activate", Transient: false, Err: fmt.Errorf("dial host %s: %w", env.Host, err)}
	}

	containers, err := host.ContainerList(ctx, container.ListOptions{
		All: true,
		Filters: filters.NewArgs(
			filters.Arg("label", "shipd.enabled=true"),
			filters.Arg("label", fmt.Sprintf("shipd.environment=%s", env.Name)),
		),
	})
	if err != nil {
		return &entity.TransportError{Op: "activate", Transient: false, Err: fmt.Errorf("list containers: %w", err)}
	}
	for _, c := range containers {
		log.Info().Str("container", c.ID).Msg("removing existing container")
		if err := host.ContainerStop(ctx, c.ID, container.StopOptions{}); err != nil {
			return &entity.TransportError{Op: "activate", Transient: false, Err: fmt.Errorf("stop container: %w", err)}
		}
		if err := host.ContainerRemove(ctx, c.ID, container.RemoveOptions{}); err != nil {
			return &entity.TransportError{Op: "activate", Transient: false, Err: fmt.Errorf("remove container: %w", err)}
		}
	}

	name := fmt.Sprintf("%s-%s", env.Name, rel.UUID[:8])
	resp, err := host.ContainerCreate(ctx,
		&container.Config{
			Image: registryRef,
			Labels: map[string]string{
				"shipd.enabled":     "true",
				"shipd.environment": env.Name,
				"shipd.release":     rel.UUID,
				"shipd.revision":    rel.SourceRevision,
			},
		},
		&container.HostConfig{
			RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
		}, nil, nil, name)
	if err != nil {
		return &entity.TransportError{Op: "activate", Transient: false, Err: fmt.Errorf("create container: %w", err)}
	}
	if err := host.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return &entity.TransportError{Op: "activate", Transient: false, Err: fmt.Errorf("start container: %w", err)}
	}

	log.Info().Str("container", resp.ID).Str("ref", registryRef).Msg("started new container")
	return nil
}

func (t *dockerTransport) withRetry(ctx context.Context, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	if t.cfg.RetryInterval > 0 {
		bo.InitialInterval = t.cfg.RetryInterval
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, t.cfg.MaxRetries), ctx)
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if permanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}

func permanent(err error) bool {
	return errdefs.IsUnauthorized(err) || errdefs.IsNotFound(err) ||
		errdefs.IsForbidden(err) || errdefs.IsInvalidParameter(err)
}

func (t *dockerTransport) registryAuth(ctx context.Context, env *entity.Environment) (string, error) {
	if env.RegistryAuthRef == "" {
		return "", nil
	}
	cred, err := t.secrets.Resolve(ctx, env.RegistryAuthRef)
	if err != nil {
		return "", fmt.Errorf("resolve registry auth: %w", err)
	}
	username, password, ok := strings.Cut(cred, ":")
	if !ok {
		return "", fmt.Errorf("%w: registry credential must be user:password", entity.ErrInvalid)
	}
	buf, err := json.Marshal(registry.AuthConfig{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("encode registry auth: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

// drainStream consumes a push/pull progress stream, surfacing any
// error entry the daemon embeds in it.
func drainStream(r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var jm jsonmessage.JSONMessage
		if err := dec.Decode(&jm); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decode progress stream: %w", err)
		}
		if jm.Error != nil {
			return fmt.Errorf("daemon: %s", jm.Error.Message)
		}
	}
}
