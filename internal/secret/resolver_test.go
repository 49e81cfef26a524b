package secret

import (
	"context"
	"errors"
	"testing"

	"github.com/yz4230/shipd/internal/entity"
)

func TestEnvResolver(t *testing.T) {
	t.Setenv("SHIPD_TEST_SECRET", "hunter2")
	r := NewEnvResolver()

	got, err := r.Resolve(context.Background(), "env:SHIPD_TEST_SECRET")
	if err != nil {
		t.Fatal(err)
	}
	if got != "hunter2" {
		t.Errorf("got %q; want %q", got, "hunter2")
	}
}

func TestEnvResolverMissing(t *testing.T) {
	r := NewEnvResolver()
	_, err := r.Resolve(context.Background(), "env:SHIPD_TEST_NO_SUCH_SECRET")
	if !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}

func TestEnvResolverBadHandle(t *testing.T) {
	r := NewEnvResolver()
	for _, handle := range []string{"", "env:", "vault:kv/creds", "SHIPD_TEST_SECRET"} {
		if _, err := r.Resolve(context.Background(), handle); !errors.Is(err, entity.ErrInvalid) {
			t.Errorf("Resolve(%q) err = %v; want ErrInvalid", handle, err)
		}
	}
}

func TestStaticResolver(t *testing.T) {
	r := StaticResolver{"env:CRED": "user:pass"}
	got, err := r.Resolve(context.Background(), "env:CRED")
	if err != nil {
		t.Fatal(err)
	}
	if got != "user:pass" {
		t.Errorf("got %q; want %q", got, "user:pass")
	}
	if _, err := r.Resolve(context.Background(), "env:OTHER"); !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("err = %v; want ErrNotFound", err)
	}
}
