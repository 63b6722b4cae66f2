package transport

import (
	"io"
	"os/exec"
)

// procRWC adapts a spawned analyzer command's stdin/stdout into the
// io.ReadWriteCloser jsonrpc2.NewBufferedStream expects, generalizing
// langserver-go.go's stdrwc{} (which wires os.Stdin/os.Stdout directly)
// to an arbitrary child process's pipes.
type procRWC struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func startProcess(cmd *exec.Cmd) (*procRWC, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &procRWC{cmd: cmd, stdin: stdin, stdout: stdout}, nil
}

func (p *procRWC) Read(b []byte) (int, error)  { return p.stdout.Read(b) }
func (p *procRWC) Write(b []byte) (int, error) { return p.stdin.Write(b) }

func (p *procRWC) Close() error {
	stdinErr := p.stdin.Close()
	stdoutErr := p.stdout.Close()
	// The child's own exit is reaped by session.Shutdown via cmd.Wait; Kill
	// here only guards against a child that ignores stdin EOF.
	_ = p.cmd.Process.Kill()
	if stdinErr != nil {
		return stdinErr
	}
	return stdoutErr
}
