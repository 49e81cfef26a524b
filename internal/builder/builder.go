package builder

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/docker/docker/api/types/build"
	"github.com/moby/go-archive"
	"github.com/rs/zerolog"
	"github.com/yz4230/shipd/internal/entity"
)

// Builder produces a deployable container image from a source
// revision. Build failures are deterministic and never retried.
type Builder interface {
	Build(ctx context.Context, req Request) (string, error)
}

type Request struct {
	RepoURL     string
	Revision    string
	ImageName   string
	ReleaseUUID string
}

type imageBuildAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
}

type dockerBuilder struct {
	cli     imageBuildAPI
	logsDir string
}

// New returns a Builder on the local docker daemon. Build logs are
// written under logsDir, one file per release.
func New(cli imageBuildAPI, logsDir string) Builder {
	return &dockerBuilder{cli: cli, logsDir: logsDir}
}

// Build clones the requested revision, builds the image and returns
// its reference ("<name>:<revision>").
func (b *dockerBuilder) Build(ctx context.Context, req Request) (string, error) {
	log := zerolog.Ctx(ctx)

	tmpDir, err := os.MkdirTemp("", fmt.Sprintf("shipd-build-%s-*", req.Revision))
	if err != nil {
		return "", fmt.Errorf("%w: create temp dir: %v", entity.ErrBuildFailed, err)
	}
	defer os.RemoveAll(tmpDir)

	if err := cloneRevision(ctx, req.RepoURL, req.Revision, tmpDir); err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrBuildFailed, err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "Dockerfile")); os.IsNotExist(err) {
		return "", fmt.Errorf("%w: no Dockerfile at revision %s", entity.ErrBuildFailed, req.Revision)
	}

	buildContext, err := archive.TarWithOptions(tmpDir, &archive.TarOptions{})
	if err != nil {
		return "", fmt.Errorf("%w: create build context: %v", entity.ErrBuildFailed, err)
	}
	defer buildContext.Close()

	imageRef := fmt.Sprintf("%s:%s", req.ImageName, req.Revision)
	opts := build.ImageBuildOptions{
		Tags: []string{imageRef},
		Labels: map[string]string{
			"shipd.enabled":  "true",
			"shipd.image":    req.ImageName,
			"shipd.revision": req.Revision,
			"shipd.release":  req.ReleaseUUID,
		},
		Dockerfile: "Dockerfile",
		Remove:     true,
	}
	resp, err := b.cli.ImageBuild(ctx, buildContext, opts)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrBuildFailed, err)
	}
	defer resp.Body.Close()

	logFile, err := b.openBuildLog(req.ReleaseUUID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrBuildFailed, err)
	}
	defer logFile.Close()

	imageID, err := decodeBuildOutput(resp.Body, func(line string) {
		fmt.Fprintln(logFile, line)
		log.Debug().Str("revision", req.Revision).Msg(line)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", entity.ErrBuildFailed, err)
	}

	log.Info().Str("image", imageRef).Str("image_id", imageID).Msg("built image")
	return imageRef, nil
}

func cloneRevision(ctx context.Context, repoURL, revision, dir string) error {
	clone := exec.CommandContext(ctx, "git", "clone", repoURL, dir)
	if out, err := clone.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone: %v: %s", err, out)
	}
	checkout := exec.CommandContext(ctx, "git", "-C", dir, "checkout", "--detach", revision)
	if out, err := checkout.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout %s: %v: %s", revision, err, out)
	}
	return nil
}

func (b *dockerBuilder) openBuildLog(releaseUUID string) (*os.File, error) {
	if err := os.MkdirAll(b.logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create build logs dir: %w", err)
	}
	path := filepath.Join(b.logsDir, releaseUUID+".log")
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create build log: %w", err)
	}
	return f, nil
}
