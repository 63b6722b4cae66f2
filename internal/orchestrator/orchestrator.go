package orchestrator

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/lsproxy-go/lsproxy/internal/config"
	"github.com/lsproxy-go/lsproxy/internal/gwerrors"
	"github.com/lsproxy-go/lsproxy/internal/langtag"
)

const (
	// containerWorkspacePath is the fixed in-container mount point every
	// analyzer wrapper image expects its workspace bind-mounted at.
	containerWorkspacePath = "/workspace"
	// containerInternalPort is the fixed in-container port every analyzer
	// wrapper image's HTTP server listens on.
	containerInternalPort = 8080
	healthCheckTimeout     = 30 * time.Second
	healthCheckInterval    = 500 * time.Millisecond
	healthLogTailLines     = 50
	// stopGraceSeconds is how long docker waits for a container to exit on
	// its own (SIGTERM) before it sends SIGKILL (spec §4.I teardown).
	stopGraceSeconds = 10
)

// Orchestrator runs and tracks one container per language tag (spec §4.I).
// It owns the set of container Records exclusively; the manager never
// reaches into it except through Ensure/Teardown.
type Orchestrator struct {
	cfg    config.Config
	runner dockerRunner
	client *http.Client

	mu      sync.Mutex
	records map[langtag.Tag]*Record

	// healthTimeout/healthInterval default to the package constants;
	// tests shrink them to avoid a real 30-second wait.
	healthTimeout  time.Duration
	healthInterval time.Duration
}

// New builds an Orchestrator that shells out to the docker CLI found on
// PATH. Returns an error if docker is not available, matching
// theRebelliousNerd-codenerd's DockerExecutor.detectDocker probe.
func New(cfg config.Config) (*Orchestrator, error) {
	runner, err := newCLIRunner()
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindOrchestratorIO, err, "docker is not available")
	}
	return newWithRunner(cfg, runner), nil
}

func newWithRunner(cfg config.Config, runner dockerRunner) *Orchestrator {
	return &Orchestrator{
		cfg:            cfg,
		runner:         runner,
		client:         &http.Client{Timeout: 2 * time.Second},
		records:        make(map[langtag.Tag]*Record),
		healthTimeout:  healthCheckTimeout,
		healthInterval: healthCheckInterval,
	}
}

// Ensure returns the live Record for tag, creating, starting, and
// health-checking a fresh container if none exists yet (spec §4.I steps
// 1-6). At most one record per tag exists at a time (invariant 5); callers
// racing on the same tag serialize on o.mu, so the loser of the race gets
// back the winner's Record instead of creating a second container. o.mu
// is held across the whole sequence rather than per-tag: container spawns
// are rare (once per language per gateway lifetime), so cross-tag
// contention here is an acceptable trade for not tracking a lock per tag.
func (o *Orchestrator) Ensure(ctx context.Context, tag langtag.Tag, def langtag.Definition, workspaceRoot string) (*Record, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if r, ok := o.records[tag]; ok {
		return r, nil
	}

	if def.ContainerImage == "" {
		return nil, gwerrors.Newf(gwerrors.KindOrchestratorIO, "language %s has no container image configured", tag)
	}

	port, release, err := reservePort(o.cfg.ContainerHost)
	if err != nil {
		return nil, gwerrors.Wrap(gwerrors.KindOrchestratorIO, err, "reserving host port")
	}

	hostPath := o.cfg.HostWorkspacePath
	if hostPath == "" {
		hostPath = workspaceRoot
	}

	opts := createOpts{
		Name:                   containerName(tag),
		Image:                  def.ContainerImage,
		HostPort:               port,
		InternalPort:           containerInternalPort,
		WorkspaceHostPath:      hostPath,
		ContainerWorkspacePath: containerWorkspacePath,
		MemoryMB:               o.cfg.ContainerMemoryMB,
		LSPCommand:             def.Command,
	}

	id, err := o.runner.create(ctx, opts)
	if err != nil {
		release()
		return nil, gwerrors.Wrap(gwerrors.KindOrchestratorIO, err, "creating container for "+string(tag))
	}
	// The reservation only needs to survive up to container creation
	// binding the host port itself (spec §4.I step 4); release it before
	// starting so the container's own bind can take over from here.
	release()

	if err := o.runner.start(ctx, id); err != nil {
		_ = o.runner.remove(ctx, id)
		return nil, gwerrors.Wrap(gwerrors.KindOrchestratorIO, err, "starting container for "+string(tag))
	}

	endpoint := fmt.Sprintf("http://%s:%d", healthCheckHost(o.cfg.ContainerHost), port)
	if o.cfg.EnableHealthCheck {
		if err := o.waitHealthy(ctx, id, endpoint); err != nil {
			return nil, err
		}
	}

	record := &Record{ContainerID: id, Image: def.ContainerImage, HostPort: port, Endpoint: endpoint}
	o.records[tag] = record
	return record, nil
}

// waitHealthy polls endpoint's /health until it succeeds or 30 seconds
// elapse, returning a HealthCheckFailed error carrying the container's
// last ~50 log lines on timeout (spec §4.I failure semantics).
func (o *Orchestrator) waitHealthy(ctx context.Context, containerID, endpoint string) error {
	deadline := time.Now().Add(o.healthTimeout)
	ticker := time.NewTicker(o.healthInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"/health", nil)
		if err == nil {
			resp, err := o.client.Do(req)
			if err == nil {
				resp.Body.Close()
				if resp.StatusCode == http.StatusOK {
					return nil
				}
			}
		}
		if time.Now().After(deadline) {
			logs, _ := o.runner.logs(ctx, containerID, healthLogTailLines)
			return gwerrors.Newf(gwerrors.KindHealthCheckFailed, "analyzer container %s did not become healthy within %s", containerID, o.healthTimeout).WithLogs(logs)
		}
		select {
		case <-ctx.Done():
			return gwerrors.Wrap(gwerrors.KindHealthCheckFailed, ctx.Err(), "health check canceled")
		case <-ticker.C:
		}
	}
}

// Teardown stops and removes tag's container and drops its record. A
// failed health check already leaves the record absent (spec §4.I failure
// semantics: "the record absent so the next attempt re-spawns"), so
// Teardown is only needed for an explicit shutdown of a healthy record.
// The record is deleted from the map before either daemon call so a
// concurrent re-spawn never observes a stale entry (spec §4.I teardown).
func (o *Orchestrator) Teardown(ctx context.Context, tag langtag.Tag) error {
	o.mu.Lock()
	r, ok := o.records[tag]
	if ok {
		delete(o.records, tag)
	}
	o.mu.Unlock()
	if !ok {
		return nil
	}
	// Graceful stop first, then force-remove regardless of whether the
	// stop succeeded in time; a container that ignored SIGTERM is removed
	// anyway rather than left running and untracked.
	_ = o.runner.stop(ctx, r.ContainerID, stopGraceSeconds)
	if err := o.runner.remove(ctx, r.ContainerID); err != nil {
		return gwerrors.Wrap(gwerrors.KindOrchestratorIO, err, "removing container for "+string(tag))
	}
	return nil
}

// TeardownAll removes every live container, best-effort, used on gateway
// shutdown.
func (o *Orchestrator) TeardownAll(ctx context.Context) error {
	o.mu.Lock()
	tags := make([]langtag.Tag, 0, len(o.records))
	for tag := range o.records {
		tags = append(tags, tag)
	}
	o.mu.Unlock()

	var firstErr error
	for _, tag := range tags {
		if err := o.Teardown(ctx, tag); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func containerName(tag langtag.Tag) string {
	return "lsproxy-analyzer-" + string(tag)
}

// healthCheckHost is the host the orchestrator's own process (not the
// container) uses to reach the container's mapped port; ContainerHost
// configures the bind address docker maps to ("0.0.0.0" by default), but
// a process outside the container reaches it via loopback.
func healthCheckHost(bindHost string) string {
	if bindHost == "" || bindHost == "0.0.0.0" {
		return "127.0.0.1"
	}
	return bindHost
}

// reservePort binds host:0, reads back the OS-chosen port, and returns a
// release func the caller must call once the container has been created
// (spec §4.I step 2: "keeping the listener alive until the container is
// created"); Ensure calls it before starting the container.
func reservePort(host string) (port int, release func(), err error) {
	l, err := net.Listen("tcp", fmt.Sprintf("%s:0", host))
	if err != nil {
		return 0, nil, err
	}
	addr := l.Addr().(*net.TCPAddr)
	return addr.Port, func() { _ = l.Close() }, nil
}
