package remote

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// request is one JSON-RPC-style call frame written to the child's
// stdin, one line per call.
type request struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// response is the envelope read back from the child's stdout. Content
// holds the tool's own payload; Error is set when the child itself
// detected a protocol-level problem (as opposed to a tool-body error
// string, which classifyToolBody handles separately).
type response struct {
	ID      string          `json:"id"`
	Content json.RawMessage `json:"content,omitempty"`
	Error   *string         `json:"error,omitempty"`
}

// callTransport is the seam between Adapter and the wire protocol, so
// tests can substitute a fake child process. *transport is the only
// production implementation.
type callTransport interface {
	call(method string, params map[string]any) (*response, error)
	close() error
}

// transport owns the child process and the request/response framing
// over its stdio. One transport per Adapter; calls are serialized
// because the wire protocol ties replies to requests by id but the
// underlying pipe is a single stream.
type transport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	mu     sync.Mutex
	closed atomic.Bool
}

func startTransport(ctx context.Context, name string, args []string, env []string) (*transport, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}

	return &transport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// call sends one request and waits for its matching response line.
// Calls are serialized: the protocol is a strict one-in-one-out stream,
// not a multiplexed one.
func (t *transport) call(method string, params map[string]any) (*response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return nil, newError(KindNotReady, method, "transport is closed")
	}

	req := request{ID: uuid.NewString(), Method: method, Params: params}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	line = append(line, '\n')

	if _, err := t.stdin.Write(line); err != nil {
		return nil, wrapError(KindTransport, method, fmt.Errorf("write request: %w", err))
	}

	raw, err := t.stdout.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(raw) == 0 {
			return nil, wrapError(KindTransport, method, fmt.Errorf("child process closed stdout"))
		}
		if err != io.EOF {
			return nil, wrapError(KindTransport, method, fmt.Errorf("read response: %w", err))
		}
	}

	var resp response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &Error{Kind: KindProtocolError, Tool: method, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	if resp.ID != req.ID {
		return nil, &Error{Kind: KindProtocolError, Tool: method, Message: fmt.Sprintf("response id %q does not match request id %q", resp.ID, req.ID)}
	}

	return &resp, nil
}

// close signals shutdown and terminates the child. Safe to call twice
// (spec.md §4.4 "close(): ... safe to call twice").
func (t *transport) close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.stdin.Close()
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
	return t.cmd.Wait()
}
