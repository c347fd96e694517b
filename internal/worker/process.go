/*
PYTHON MODEL WORKER PROCESS

Runs a long-lived Python subprocess (pose classifier or keypoint extractor)
and talks to it over stdio with request/response round trips.

WIRE FORMAT (both directions):
  4-byte big-endian length prefix + MsgPack payload

REQUEST (Go → stdin):
  {"id": "<uuid>", "command": "infer", ...command fields}

RESPONSE (stdout → Go):
  {"id": "<uuid>", "ok": true, "data": {...}, "timing": {"total_ms": 12.5}}
  {"id": "<uuid>", "ok": false, "error": "message"}

GOROUTINES:
  logStderr()   - maps Python log levels onto slog
  waitProcess() - reaps the process, logs unexpected exits

CALLS:
  Call() holds a mutex for the whole round trip, so one request is in
  flight at a time and responses never interleave. The engine and the
  extractor each own a separate Process.

FAILURE MODES:
  1. Call timeout      → process is killed, worker goes inactive (the stream
                         can no longer be trusted to be in sync)
  2. Response id drift → same as timeout
  3. Python error      → ErrWorkerRequest, process stays up
  4. Stop timeout (2s) → force kill
*/

package worker

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	defaultCallTimeout = 10 * time.Second
	stopTimeout        = 2 * time.Second
	maxFrameBytes      = 64 << 20
)

var (
	// ErrWorkerNotActive is returned when calling a worker that is not running.
	ErrWorkerNotActive = errors.New("worker not active")
	// ErrCallTimeout is returned when the worker does not answer in time.
	ErrCallTimeout = errors.New("worker call timeout")
	// ErrWorkerRequest wraps an error reported by the Python side.
	ErrWorkerRequest = errors.New("worker request failed")
)

// ProcessConfig contains configuration for a worker process
type ProcessConfig struct {
	WorkerID    string
	Command     string
	Args        []string
	Env         []string      // appended to the parent environment
	CallTimeout time.Duration // used when the call context has no deadline
}

// Process wraps a Python model worker subprocess
type Process struct {
	id          string
	command     string
	args        []string
	env         []string
	callTimeout time.Duration

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	isActive atomic.Bool
	callMu   sync.Mutex

	// Stats
	callCount      uint64
	failureCount   uint64
	totalLatencyMS uint64
	lastSeenAt     atomic.Value // time.Time
}

// Metrics contains worker health metrics
type Metrics struct {
	Active       bool      `json:"active"`
	Calls        uint64    `json:"calls"`
	Failures     uint64    `json:"failures"`
	AvgLatencyMS float64   `json:"avg_latency_ms"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

type envelope struct {
	ID     string             `msgpack:"id"`
	OK     bool               `msgpack:"ok"`
	Error  string             `msgpack:"error"`
	Data   msgpack.RawMessage `msgpack:"data"`
	Timing map[string]float64 `msgpack:"timing"`
}

// NewProcess creates a worker process wrapper. The process is spawned by Start.
func NewProcess(cfg ProcessConfig) (*Process, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("worker command is required")
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}

	return &Process{
		id:          cfg.WorkerID,
		command:     cfg.Command,
		args:        cfg.Args,
		env:         cfg.Env,
		callTimeout: cfg.CallTimeout,
	}, nil
}

// ID returns the worker ID
func (p *Process) ID() string {
	return p.id
}

// Start spawns the subprocess and its helper goroutines
func (p *Process) Start(ctx context.Context) error {
	if p.isActive.Load() {
		return fmt.Errorf("worker already started")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	p.cmd = exec.CommandContext(p.ctx, p.command, p.args...)
	if len(p.env) > 0 {
		p.cmd.Env = append(os.Environ(), p.env...)
	}

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	p.stdin = stdin

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	p.stdout = stdout

	stderr, err := p.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	p.stderr = stderr

	if err := p.cmd.Start(); err != nil {
		p.cancel()
		return fmt.Errorf("failed to start worker process: %w", err)
	}

	p.isActive.Store(true)
	p.lastSeenAt.Store(time.Now())

	p.wg.Add(2)
	go p.logStderr()
	go p.waitProcess()

	slog.Info("worker process started",
		"worker_id", p.id,
		"command", p.command,
		"pid", p.cmd.Process.Pid,
	)

	return nil
}

// IsActive reports whether the subprocess is running and usable
func (p *Process) IsActive() bool {
	return p.isActive.Load()
}

// Call sends one request and decodes the response data into out.
// request must not contain the "id" key; it is assigned here.
func (p *Process) Call(ctx context.Context, request map[string]interface{}, out interface{}) error {
	p.callMu.Lock()
	defer p.callMu.Unlock()

	if !p.isActive.Load() {
		return ErrWorkerNotActive
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.callTimeout)
		defer cancel()
	}

	atomic.AddUint64(&p.callCount, 1)
	started := time.Now()

	requestID := uuid.NewString()
	request["id"] = requestID

	payload, err := msgpack.Marshal(request)
	if err != nil {
		atomic.AddUint64(&p.failureCount, 1)
		return fmt.Errorf("failed to marshal msgpack request: %w", err)
	}

	type result struct {
		env envelope
		err error
	}
	done := make(chan result, 1)
	go func() {
		if err := writeFrame(p.stdin, payload); err != nil {
			done <- result{err: fmt.Errorf("failed to write to stdin: %w", err)}
			return
		}
		data, err := readFrame(p.stdout)
		if err != nil {
			done <- result{err: fmt.Errorf("failed to read from stdout: %w", err)}
			return
		}
		var env envelope
		if err := msgpack.Unmarshal(data, &env); err != nil {
			done <- result{err: fmt.Errorf("failed to unmarshal msgpack response: %w", err)}
			return
		}
		done <- result{env: env}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		atomic.AddUint64(&p.failureCount, 1)
		slog.Error("worker call timed out, killing process",
			"worker_id", p.id,
			"command", request["command"],
			"request_id", requestID,
			"error", ctx.Err(),
		)
		p.kill()
		return fmt.Errorf("%w: %v", ErrCallTimeout, ctx.Err())
	}

	if res.err != nil {
		atomic.AddUint64(&p.failureCount, 1)
		p.kill()
		return res.err
	}

	if res.env.ID != requestID {
		atomic.AddUint64(&p.failureCount, 1)
		slog.Error("worker response id mismatch",
			"worker_id", p.id,
			"want", requestID,
			"got", res.env.ID,
		)
		p.kill()
		return fmt.Errorf("worker response id mismatch")
	}

	p.lastSeenAt.Store(time.Now())
	if total, ok := res.env.Timing["total_ms"]; ok {
		atomic.AddUint64(&p.totalLatencyMS, uint64(total))
	} else {
		atomic.AddUint64(&p.totalLatencyMS, uint64(time.Since(started).Milliseconds()))
	}

	if !res.env.OK {
		atomic.AddUint64(&p.failureCount, 1)
		return fmt.Errorf("%w: %s", ErrWorkerRequest, res.env.Error)
	}

	if out != nil && len(res.env.Data) > 0 {
		if err := msgpack.Unmarshal(res.env.Data, out); err != nil {
			atomic.AddUint64(&p.failureCount, 1)
			return fmt.Errorf("failed to decode worker data: %w", err)
		}
	}

	return nil
}

func writeFrame(w io.Writer, payload []byte) error {
	prefix := make([]byte, 4)
	binary.BigEndian.PutUint32(prefix, uint32(len(payload)))
	if _, err := w.Write(prefix); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write msgpack data: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix)
	if n > maxFrameBytes {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

// logStderr maps Python log levels to slog levels
func (p *Process) logStderr() {
	defer p.wg.Done()

	scanner := bufio.NewScanner(p.stderr)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case containsAny(line, "[ERROR]", "[CRITICAL]"):
			slog.Error("python worker error", "worker_id", p.id, "log", line)
		case containsAny(line, "[WARNING]", "[WARN]"):
			slog.Warn("python worker warning", "worker_id", p.id, "log", line)
		default:
			slog.Debug("python worker log", "worker_id", p.id, "log", line)
		}
	}

	if err := scanner.Err(); err != nil {
		slog.Debug("stderr reader stopped", "worker_id", p.id, "error", err)
	}
}

// waitProcess reaps the subprocess so it never lingers as a zombie
func (p *Process) waitProcess() {
	defer p.wg.Done()

	err := p.cmd.Wait()
	wasActive := p.isActive.Swap(false)

	switch {
	case err == nil:
		slog.Info("worker process exited cleanly", "worker_id", p.id, "pid", p.cmd.Process.Pid)
	case p.ctx.Err() != nil || !wasActive:
		slog.Debug("worker process exited (shutdown)", "worker_id", p.id, "pid", p.cmd.Process.Pid)
	default:
		slog.Error("worker process exited unexpectedly",
			"worker_id", p.id,
			"pid", p.cmd.Process.Pid,
			"error", err,
		)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// kill tears the process down after a broken round trip. Callers hold callMu.
func (p *Process) kill() {
	p.isActive.Store(false)
	if p.cancel != nil {
		p.cancel()
	}
	if p.stdin != nil {
		p.stdin.Close()
	}
}

// Restart stops the subprocess if needed and spawns a fresh one.
// It waits for any in-flight call to finish first.
func (p *Process) Restart(ctx context.Context) error {
	p.callMu.Lock()
	defer p.callMu.Unlock()

	if err := p.Stop(); err != nil {
		return err
	}
	return p.Start(ctx)
}

// Metrics returns current worker health metrics
func (p *Process) Metrics() Metrics {
	calls := atomic.LoadUint64(&p.callCount)
	failures := atomic.LoadUint64(&p.failureCount)
	totalLatencyMS := atomic.LoadUint64(&p.totalLatencyMS)

	var avgLatencyMS float64
	if calls > failures {
		avgLatencyMS = float64(totalLatencyMS) / float64(calls-failures)
	}

	var lastSeen time.Time
	if val := p.lastSeenAt.Load(); val != nil {
		lastSeen = val.(time.Time)
	}

	return Metrics{
		Active:       p.isActive.Load(),
		Calls:        calls,
		Failures:     failures,
		AvgLatencyMS: avgLatencyMS,
		LastSeenAt:   lastSeen,
	}
}

// Stop closes stdin so the worker can exit, then force kills after a timeout
func (p *Process) Stop() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}

	p.isActive.Store(false)
	slog.Info("stopping worker process", "worker_id", p.id)

	if p.stdin != nil {
		p.stdin.Close()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("worker process stopped cleanly", "worker_id", p.id)
	case <-time.After(stopTimeout):
		slog.Warn("worker stop timeout, force killing process", "worker_id", p.id)
		if p.cancel != nil {
			p.cancel()
		}
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Error("failed to kill worker process", "worker_id", p.id, "error", err)
		}
		select {
		case <-done:
		case <-time.After(stopTimeout):
			slog.Error("worker goroutines did not exit after kill", "worker_id", p.id)
		}
	}

	if p.cancel != nil {
		p.cancel()
	}

	slog.Info("worker process stopped",
		"worker_id", p.id,
		"calls", atomic.LoadUint64(&p.callCount),
		"failures", atomic.LoadUint64(&p.failureCount),
	)

	return nil
}
