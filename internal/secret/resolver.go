package secret

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yz4230/shipd/internal/entity"
)

// Resolver turns an opaque secret handle into its value at deploy
// time. Handles are the only thing the data model ever stores.
type Resolver interface {
	Resolve(ctx context.Context, handle string) (string, error)
}

const envScheme = "env:"

// EnvResolver resolves handles of the form "env:NAME" from the
// process environment, the way CI secrets reach a deploy job.
type EnvResolver struct{}

func NewEnvResolver() Resolver { return EnvResolver{} }

func (EnvResolver) Resolve(ctx context.Context, handle string) (string, error) {
	name, ok := strings.CutPrefix(handle, envScheme)
	if !ok || name == "" {
		return "", fmt.Errorf("%w: unsupported secret handle %q", entity.ErrInvalid, handle)
	}
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: secret %q", entity.ErrNotFound, handle)
	}
	return value, nil
}

// StaticResolver serves secrets from a fixed map. Test use only.
type StaticResolver map[string]string

func (s StaticResolver) Resolve(ctx context.Context, handle string) (string, error) {
	value, ok := s[handle]
	if !ok {
		return "", fmt.Errorf("%w: secret %q", entity.ErrNotFound, handle)
	}
	return value, nil
}
