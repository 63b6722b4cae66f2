// Command lsproxy runs the polyglot code-intelligence gateway: it serves
// the /v1 HTTP façade (internal/httpapi) over internal/manager, spawning
// one analyzer per detected language either as a direct child process
// (internal/transport) or, with -containerized, inside a Docker
// container reached over HTTP (internal/orchestrator +
// internal/remoteclient). The flag-based CLI, debug server goroutine,
// and freeOSMemory loop follow the teacher's own main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lsproxy-go/lsproxy/debugserver"
	"github.com/lsproxy-go/lsproxy/internal/analyzer"
	"github.com/lsproxy-go/lsproxy/internal/config"
	"github.com/lsproxy-go/lsproxy/internal/gwerrors"
	"github.com/lsproxy-go/lsproxy/internal/httpapi"
	"github.com/lsproxy-go/lsproxy/internal/langtag"
	"github.com/lsproxy-go/lsproxy/internal/manager"
	"github.com/lsproxy-go/lsproxy/internal/metrics"
	"github.com/lsproxy-go/lsproxy/internal/orchestrator"
	"github.com/lsproxy-go/lsproxy/internal/remoteclient"
	"github.com/lsproxy-go/lsproxy/internal/transport"
	"github.com/lsproxy-go/lsproxy/internal/workspace"
	"github.com/lsproxy-go/lsproxy/tracer"
)

var (
	addr          = flag.String("addr", ":4444", "gateway HTTP listen address")
	workspaceRoot = flag.String("workspace", ".", "workspace root directory to serve")
	containerized = flag.Bool("containerized", false, "spawn analyzers inside per-language Docker containers instead of as direct child processes")
	freeosmemory  = flag.Bool("freeosmemory", true, "aggressively free memory back to the OS")
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *freeosmemory {
		go freeOSMemory()
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	tracer.Init()
	go debugserver.Start()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	root, err := resolveWorkspaceRoot(*workspaceRoot)
	if err != nil {
		return err
	}

	registry, err := langtag.Load()
	if err != nil {
		return err
	}

	docs, err := workspace.NewDocuments(root)
	if err != nil {
		return err
	}
	defer docs.Close()

	met := metrics.New()

	var orch *orchestrator.Orchestrator
	if *containerized {
		orch, err = orchestrator.New(cfg)
		if err != nil {
			return err
		}
		defer orch.TeardownAll(context.Background())
	}

	spawn := makeSpawnFunc(orch, met)
	mgr := manager.New(cfg, registry, root, docs, spawn)
	defer mgr.Shutdown(context.Background())

	srv := httpapi.New(mgr, root, cfg.UseAuth, cfg.AuthToken, met)

	httpSrv := &http.Server{
		Addr:    *addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("lsproxy: serving %s on %s", root, *addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Println("lsproxy: shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(ctx)
	}
}

// makeSpawnFunc selects, once at startup, whether languages are served
// by direct child processes or by containers, per spec §4.I/§4.J: the
// manager itself stays agnostic to which (manager.SpawnFunc).
func makeSpawnFunc(orch *orchestrator.Orchestrator, m *metrics.Metrics) manager.SpawnFunc {
	if orch == nil {
		return func(ctx context.Context, tag langtag.Tag, def langtag.Definition, root string, extraArgs []string) (analyzer.Client, error) {
			session, err := transport.Start(ctx, tag, def, root, extraArgs)
			if err != nil {
				return nil, err
			}
			m.OpenSessions.Inc()
			return session, nil
		}
	}
	return func(ctx context.Context, tag langtag.Tag, def langtag.Definition, root string, extraArgs []string) (analyzer.Client, error) {
		record, err := orch.Ensure(ctx, tag, def, root)
		if err != nil {
			if gwerrors.KindOf(err) == gwerrors.KindHealthCheckFailed {
				m.HealthCheckFails.Inc()
			}
			return nil, err
		}
		m.OpenContainers.Inc()
		m.ContainerSpawns.Inc()
		return remoteclient.New(record.Endpoint), nil
	}
}

func resolveWorkspaceRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace root %s is not a directory", abs)
	}
	return abs, nil
}

// freeOSMemory mirrors the teacher's own main.go: editor-hosted language
// servers benefit from returning memory to the OS more aggressively than
// the Go runtime's default 5-minute cadence.
func freeOSMemory() {
	for {
		time.Sleep(1 * time.Second)
		debug.FreeOSMemory()
	}
}
