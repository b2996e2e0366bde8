// Package remote implements the Remote Adapter: a single long-lived
// subprocess speaking a JSON-RPC-style tool-invocation protocol over
// stdio against a remote issue tracker (spec.md §4.4, §6).
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"golang.org/x/time/rate"

	"github.com/jra3/tasksync/internal/config"
)

// Transport selects how the adapter reaches the remote tool server.
type Transport string

const (
	// TransportExternal spawns a long-running external binary once;
	// connect is fast (~100-200ms).
	TransportExternal Transport = "external"
	// TransportDocker runs DockerCommand/DockerArgs instead; like the
	// external transport it is spawned once at Connect and serves every
	// call (no container per call). Slow (~2-3s startup) but requires no
	// local install.
	TransportDocker Transport = "docker"
)

// Options configures adapter construction.
type Options struct {
	Transport       Transport
	Command         string
	Args            []string
	DockerCommand   string
	DockerArgs      []string
	FallbackToDocker bool
	Silent          bool
	RateLimit       rate.Limit
	RateBurst       int
}

// DefaultOptions returns sane defaults: external transport, fallback
// enabled, a conservative rate budget shared by all tool calls.
func DefaultOptions() Options {
	return Options{
		Transport:        TransportExternal,
		FallbackToDocker: true,
		RateLimit:        rate.Limit(2),
		RateBurst:        20,
	}
}

// Adapter owns the child process and exposes the remote tracker's
// operations as typed Go calls. One Adapter = one subprocess (spec.md
// §4.4).
type Adapter struct {
	opts  Options
	creds config.Credentials

	transport callTransport
	limiter   *rate.Limiter
	stats     *Stats

	ready bool
}

// newWithTransport builds an Adapter around a pre-supplied transport,
// bypassing Connect's spawn/handshake. Used by tests to exercise
// callTool, the wrappers, and error classification without a real
// subprocess.
func newWithTransport(t callTransport, opts Options) *Adapter {
	if opts.RateLimit == 0 {
		opts = mergeDefaults(opts)
	}
	return &Adapter{
		opts:      opts,
		transport: t,
		limiter:   rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		stats:     NewStats(),
		ready:     true,
	}
}

// New constructs an Adapter. It does not spawn anything until Connect
// is called.
func New(creds config.Credentials, opts Options) *Adapter {
	if opts.RateLimit == 0 {
		opts = mergeDefaults(opts)
	}
	return &Adapter{
		opts:    opts,
		creds:   creds,
		limiter: rate.NewLimiter(opts.RateLimit, opts.RateBurst),
		stats:   NewStats(),
	}
}

func mergeDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.RateLimit == 0 {
		opts.RateLimit = def.RateLimit
	}
	if opts.RateBurst == 0 {
		opts.RateBurst = def.RateBurst
	}
	return opts
}

// Connect spawns the configured server command, performs the protocol
// handshake, then polls listTools until it succeeds or a 5-second
// timeout expires (spec.md §4.4). Only after Connect returns nil is the
// adapter ready to accept tool calls.
func (a *Adapter) Connect(ctx context.Context) error {
	name, args := a.opts.Command, a.opts.Args
	usingDocker := a.opts.Transport == TransportDocker
	if usingDocker {
		name, args = a.opts.DockerCommand, a.opts.DockerArgs
	}

	t, err := startTransport(ctx, name, args, a.creds.Env())
	if err != nil {
		if !usingDocker && a.opts.FallbackToDocker && a.opts.DockerCommand != "" {
			a.logf("external transport %q failed to spawn (%v); falling back to docker", name, err)
			t, err = startTransport(ctx, a.opts.DockerCommand, a.opts.DockerArgs, a.creds.Env())
		}
		if err != nil {
			return wrapError(KindTransport, "connect", fmt.Errorf("spawn remote tool server: %w", err))
		}
	}
	a.transport = t

	deadline := time.Now().Add(5 * time.Second)
	var lastErr error
	for time.Now().Before(deadline) {
		if err := a.limiter.Wait(ctx); err != nil {
			return wrapError(KindTransport, "listTools", err)
		}
		_, err := a.transport.call("listTools", nil)
		if err == nil {
			a.ready = true
			return nil
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}

	return wrapError(KindNotReady, "listTools", fmt.Errorf("handshake did not complete within 5s: %w", lastErr))
}

// Close closes the child's stdin and terminates it, without draining
// pending output. Safe to call twice or on a never-connected Adapter.
func (a *Adapter) Close() error {
	if a.transport == nil {
		return nil
	}
	return a.transport.close()
}

// Stats returns the call-count tracker for CLI status output.
func (a *Adapter) Stats() *Stats {
	return a.stats
}

func (a *Adapter) logf(format string, args ...any) {
	if a.opts.Silent {
		return
	}
	log.Printf("[remote] "+format, args...)
}

// callTool performs one rate-limited, stats-tracked JSON-RPC call and
// unwraps its envelope into result (spec.md §4.4 callTool).
func (a *Adapter) callTool(ctx context.Context, tool string, params map[string]any, result any) error {
	if !a.ready {
		return newError(KindNotReady, tool, "adapter.Connect has not completed")
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return wrapError(KindTransport, tool, err)
	}

	start := time.Now()
	resp, err := a.transport.call(tool, params)
	a.stats.Record(tool, time.Since(start), err)
	if err != nil {
		return err
	}

	if resp.Error != nil {
		toolErr := classifyToolBody(tool, *resp.Error)
		if toolErr == nil {
			toolErr = newError(KindProtocolError, tool, *resp.Error)
		}
		return toolErr
	}

	if len(resp.Content) == 0 {
		return newError(KindResponseShape, tool, "response has no content")
	}

	// The content is either a structured payload or a bare string; a
	// bare string may itself be an error signal (spec.md §4.4).
	var asString string
	if err := json.Unmarshal(resp.Content, &asString); err == nil {
		if toolErr := classifyToolBody(tool, asString); toolErr != nil {
			return toolErr
		}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Content, result); err != nil {
		return &Error{Kind: KindResponseShape, Tool: tool, Message: fmt.Sprintf("unexpected response shape: %v", err)}
	}
	return nil
}
