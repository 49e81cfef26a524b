package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/yz4230/shipd/internal/entity"
	"github.com/yz4230/shipd/internal/secret"
)

type fakeDockerAPI struct {
	pushCalls int
	pullCalls int
	pushErr   error
	pullErr   error

	tagged     [][2]string
	created    []string
	started    []string
	stopped    []string
	removed    []string
	containers []container.Summary
}

func (f *fakeDockerAPI) ImageTag(ctx context.Context, source, target string) error {
	f.tagged = append(f.tagged, [2]string{source, target})
	return nil
}

func (f *fakeDockerAPI) ImagePush(ctx context.Context, img string, options image.PushOptions) (io.ReadCloser, error) {
	f.pushCalls++
	if f.pushErr != nil {
		return nil, f.pushErr
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeDockerAPI) ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error) {
	f.pullCalls++
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (f *fakeDockerAPI) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	return f.containers, nil
}

func (f *fakeDockerAPI) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeDockerAPI) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeDockerAPI) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.created = append(f.created, containerName)
	return container.CreateResponse{ID: "c-" + containerName}, nil
}

func (f *fakeDockerAPI) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.started = append(f.started, containerID)
	return nil
}

func newTestTransport(local *fakeDockerAPI, remote *fakeDockerAPI) *dockerTransport {
	return &dockerTransport{
		local:   local,
		remote:  func(host string) (dockerAPI, error) { return remote, nil },
		secrets: secret.StaticResolver{"env:REGISTRY_CRED": "user:pass"},
		cfg:     Config{MaxRetries: 3, RetryInterval: time.Millisecond},
	}
}

func testTransportEnv() *entity.Environment {
	return &entity.Environment{
		ID:             entity.NewID("1"),
		Name:           "production",
		RegistryPrefix: "registry.example.com/apps",
	}
}

func TestPushTagsIntoRegistryNamespace(t *testing.T) {
	local := &fakeDockerAPI{}
	tr := newTestTransport(local, nil)

	ref, err := tr.Push(context.Background(), "myapp:abc1234", testTransportEnv())
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	want := "registry.example.com/apps/myapp:abc1234"
	if ref != want {
		t.Fatalf("registry ref = %q; want %q", ref, want)
	}
	if len(local.tagged) != 1 || local.tagged[0][1] != want {
		t.Fatalf("tagged = %v; want tag to %q", local.tagged, want)
	}
}

func TestPushPermanentFailureNoRetry(t *testing.T) {
	local := &fakeDockerAPI{pushErr: errdefs.Unauthorized(errors.New("authentication required"))}
	tr := newTestTransport(local, nil)

	_, err := tr.Push(context.Background(), "myapp:abc1234", testTransportEnv())
	var terr *entity.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v; want TransportError", err)
	}
	if terr.Transient {
		t.Fatal("authentication failure classified as transient")
	}
	if local.pushCalls != 1 {
		t.Fatalf("push calls = %d; want 1 (no retry)", local.pushCalls)
	}
}

func TestPushTransientFailureRetriesToBound(t *testing.T) {
	local := &fakeDockerAPI{pushErr: errors.New("connection reset by peer")}
	tr := newTestTransport(local, nil)

	_, err := tr.Push(context.Background(), "myapp:abc1234", testTransportEnv())
	var terr *entity.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v; want TransportError", err)
	}
	if !terr.Transient {
		t.Fatal("connection reset classified as permanent")
	}
	if local.pushCalls != 4 {
		t.Fatalf("push calls = %d; want 4 (initial + 3 retries)", local.pushCalls)
	}
}

func TestPullNotFoundNoRetry(t *testing.T) {
	remote := &fakeDockerAPI{pullErr: errdefs.NotFound(errors.New("manifest unknown"))}
	tr := newTestTransport(nil, remote)

	err := tr.Pull(context.Background(), "registry.example.com/apps/myapp:abc1234", testTransportEnv())
	var terr *entity.TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v; want TransportError", err)
	}
	if terr.Transient {
		t.Fatal("not-found classified as transient")
	}
	if remote.pullCalls != 1 {
		t.Fatalf("pull calls = %d; want 1 (no retry)", remote.pullCalls)
	}
}

func TestActivateReplacesLabelledContainer(t *testing.T) {
	remote := &fakeDockerAPI{
		containers: []container.Summary{{ID: "old-container"}},
	}
	tr := newTestTransport(nil, remote)
	rel := &entity.Release{UUID: "0123456789abcdef", SourceRevision: "abc1234"}

	err := tr.Activate(context.Background(), "registry.example.com/apps/myapp:abc1234", testTransportEnv(), rel)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if len(remote.stopped) != 1 || remote.stopped[0] != "old-container" {
		t.Fatalf("stopped = %v; want [old-container]", remote.stopped)
	}
	if len(remote.removed) != 1 {
		t.Fatalf("removed = %v; want one container", remote.removed)
	}
	if len(remote.created) != 1 || remote.created[0] != "production-01234567" {
		t.Fatalf("created = %v; want [production-01234567]", remote.created)
	}
	if len(remote.started) != 1 {
		t.Fatalf("started = %v; want one container", remote.started)
	}
}
