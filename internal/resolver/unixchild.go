// Unix child-process DNS resolver pool (Backend A from spec.md §4.3).
// A small, fixed number of worker subprocesses are kept warm and reused
// across queries; each performs one blocking lookup per request and is
// discarded on any I/O error, exactly as dnsquery.c's resolver child does.
// This is the one place in the core that genuinely forks — kept as-is
// per DESIGN NOTES §9 ("genuine isolation against gethostbyname bugs").
package resolver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os/exec"
	"sync"
	"time"
)

// ChildWorkerEnv is the environment variable a re-exec'd child checks to
// know it should run as a resolver worker instead of the normal program,
// mirroring the source's separate dns_resolver helper binary via
// self-exec instead of a second compiled artifact.
const ChildWorkerEnv = "IMCORE_DNS_WORKER"

// childIdleTimeout mirrors the source's 40-second child idle-exit.
const childIdleTimeout = 40 * time.Second

type childRequest struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

type childResponse struct {
	Error string   `json:"error,omitempty"`
	Addrs []string `json:"addrs,omitempty"` // "ip" strings; port is re-attached by the parent
}

// RunChildWorker is the subprocess-side entry point. cmd/imcored's main()
// calls this (and returns) when ChildWorkerEnv is set in its own
// environment, turning the same binary into a resolver worker: it reads
// one newline-delimited JSON request per line from stdin, performs a
// blocking lookup, and writes one JSON response per line to stdout, until
// stdin is closed or it has been idle for childIdleTimeout.
func RunChildWorker(stdin io.Reader, stdout io.Writer) error {
	r := bufio.NewReader(stdin)
	for {
		lineCh := make(chan string, 1)
		errCh := make(chan error, 1)
		go func() {
			line, err := r.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			lineCh <- line
		}()

		select {
		case line := <-lineCh:
			var req childRequest
			if err := json.Unmarshal([]byte(line), &req); err != nil {
				writeResponse(stdout, childResponse{Error: err.Error()})
				continue
			}
			ips, err := net.DefaultResolver.LookupIPAddr(context.Background(), req.Hostname)
			if err != nil {
				writeResponse(stdout, childResponse{Error: err.Error()})
				continue
			}
			resp := childResponse{}
			for _, ip := range ips {
				resp.Addrs = append(resp.Addrs, ip.IP.String())
			}
			writeResponse(stdout, resp)
		case <-time.After(childIdleTimeout):
			return nil
		}
	}
}

func writeResponse(w io.Writer, resp childResponse) {
	b, _ := json.Marshal(resp)
	b = append(b, '\n')
	_, _ = w.Write(b)
}

type child struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func spawnChild(exe string, args []string) (*child, error) {
	cmd := exec.Command(exe, args...)
	cmd.Env = append(cmd.Environ(), ChildWorkerEnv+"=1")
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
	return &child{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}, nil
}

func (c *child) resolve(hostname string, port int) ([]Addr, error) {
	req := childRequest{Hostname: hostname, Port: port}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	b = append(b, '\n')
	if _, err := c.stdin.Write(b); err != nil {
		return nil, err
	}
	line, err := c.stdout.ReadString('\n')
	if err != nil {
		return nil, &Error{Kind: ErrorEOF, Err: err}
	}
	var resp childResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &Error{Kind: ErrorTemporaryFailure, Err: errors.New(resp.Error)}
	}
	addrs := make([]Addr, 0, len(resp.Addrs))
	for _, s := range resp.Addrs {
		addrs = append(addrs, Addr{IP: net.ParseIP(s), Port: port})
	}
	return addrs, nil
}

func (c *child) kill() {
	_ = c.stdin.Close()
	_ = c.cmd.Process.Kill()
	go c.cmd.Wait() // reap non-blocking, as the parent's waitpid(WNOHANG) does
}

// UnixChildBackend is Backend A: it maintains up to MaxDNSChildren
// reusable children, spawning more on demand and discarding any child
// that errors.
type UnixChildBackend struct {
	exe  string
	args []string

	mu   sync.Mutex
	free []*child
	n    int
}

// NewUnixChildBackend creates a pool that spawns exe(args...) as a
// resolver worker (see RunChildWorker) on demand, up to MaxDNSChildren
// concurrently live children.
func NewUnixChildBackend(exe string, args ...string) *UnixChildBackend {
	return &UnixChildBackend{exe: exe, args: args}
}

func (p *UnixChildBackend) take() (*child, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		c := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return c, nil
	}
	if p.n >= MaxDNSChildren {
		p.mu.Unlock()
		return nil, fmt.Errorf("dns child pool exhausted (max %d)", MaxDNSChildren)
	}
	p.n++
	p.mu.Unlock()

	c, err := spawnChild(p.exe, p.args)
	if err != nil {
		p.mu.Lock()
		p.n--
		p.mu.Unlock()
		return nil, &Error{Kind: ErrorSpawnFailure, Err: err}
	}
	return c, nil
}

func (p *UnixChildBackend) put(c *child, healthy bool) {
	if !healthy {
		c.kill()
		p.mu.Lock()
		p.n--
		p.mu.Unlock()
		return
	}
	p.mu.Lock()
	p.free = append(p.free, c)
	p.mu.Unlock()
}

func (p *UnixChildBackend) Lookup(_ context.Context, hostname string, port int) ([]Addr, error) {
	c, err := p.take()
	if err != nil {
		return nil, err
	}
	addrs, err := c.resolve(hostname, port)
	p.put(c, err == nil)
	return addrs, err
}

// Live reports how many children the pool currently owns (free + in use),
// for tests asserting the pool never exceeds MaxDNSChildren.
func (p *UnixChildBackend) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
