package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// createOpts is everything dockerRunner.create needs to know to bind and
// start one analyzer container (spec §4.I step 3).
type createOpts struct {
	Name       string
	Image      string
	HostPort   int
	InternalPort int
	WorkspaceHostPath string
	ContainerWorkspacePath string
	MemoryMB   int64
	LSPCommand string
}

// dockerRunner is the seam between the orchestrator's sequencing logic and
// the actual container engine, so tests can swap in a fake without a real
// Docker daemon. cliRunner is the production implementation, shelling out
// to the docker binary the way theRebelliousNerd-codenerd's DockerExecutor
// shells out to run buildDockerArgs-style argument lists.
type dockerRunner interface {
	create(ctx context.Context, opts createOpts) (containerID string, err error)
	start(ctx context.Context, containerID string) error
	logs(ctx context.Context, containerID string, tailLines int) (string, error)
	stop(ctx context.Context, containerID string, timeoutSeconds int) error
	remove(ctx context.Context, containerID string) error
}

type cliRunner struct {
	dockerPath string
}

func newCLIRunner() (*cliRunner, error) {
	path, err := exec.LookPath("docker")
	if err != nil {
		return nil, err
	}
	return &cliRunner{dockerPath: path}, nil
}

func (r *cliRunner) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, r.dockerPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("%s: %s", err, strings.TrimSpace(stderr.String()))
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (r *cliRunner) create(ctx context.Context, opts createOpts) (string, error) {
	args := []string{
		"create",
		"--name", opts.Name,
		"-p", fmt.Sprintf("%d:%d", opts.HostPort, opts.InternalPort),
		"-v", fmt.Sprintf("%s:%s:rw", opts.WorkspaceHostPath, opts.ContainerWorkspacePath),
		"-e", "LSP_COMMAND=" + opts.LSPCommand,
	}
	if opts.MemoryMB > 0 {
		args = append(args, "--memory", fmt.Sprintf("%dm", opts.MemoryMB))
	}
	args = append(args, opts.Image)
	return r.run(ctx, args...)
}

func (r *cliRunner) start(ctx context.Context, containerID string) error {
	_, err := r.run(ctx, "start", containerID)
	return err
}

func (r *cliRunner) logs(ctx context.Context, containerID string, tailLines int) (string, error) {
	return r.run(ctx, "logs", "--tail", fmt.Sprintf("%d", tailLines), containerID)
}

// stop requests a graceful stop, giving the container timeoutSeconds to
// exit on its own before docker sends SIGKILL (spec §4.I teardown).
func (r *cliRunner) stop(ctx context.Context, containerID string, timeoutSeconds int) error {
	_, err := r.run(ctx, "stop", "-t", fmt.Sprintf("%d", timeoutSeconds), containerID)
	return err
}

func (r *cliRunner) remove(ctx context.Context, containerID string) error {
	_, err := r.run(ctx, "rm", "-f", containerID)
	return err
}
