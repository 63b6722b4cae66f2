// Package orchestrator runs each language's analyzer inside an isolated
// Docker container instead of as a direct child process (spec §4.I),
// reserving a host port, creating and starting the container, optionally
// health-checking it, and handing back the tuple internal/remoteclient
// needs to talk to it over HTTP. It shells out to the docker CLI the way
// theRebelliousNerd-codenerd's internal/tactile.DockerExecutor drives
// docker run via os/exec, since no teacher dependency wraps the Docker
// daemon API directly.
package orchestrator

// Record is the orchestrator's bookkeeping for one running per-language
// container (spec §3 "Container record"). At most one Record exists per
// language tag at any time, and the HostPort is unique across live
// records (invariant 5).
type Record struct {
	ContainerID string
	Image       string
	HostPort    int
	Endpoint    string // http://<host>:<port>
}
