package whisperx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
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

	"golang.org/x/sync/errgroup"

	"wordsync/internal/logging"
	"wordsync/internal/services"
)

const (
	stageName        = "whisperx"
	maxStdoutLine    = 32 * 1024 * 1024
	stderrTailLines  = 20
	progressBucketPc = 10
)

// Process is a running service instance with its stdio pipes.
type Process struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Stderr io.Reader
	Wait   func() error
	Kill   func() error
}

// Starter launches the service process. env entries are appended to the
// current environment.
type Starter func(ctx context.Context, name string, args, env []string) (*Process, error)

// Option configures a Client.
type Option func(*Client)

// WithStarter overrides process creation (for testing).
func WithStarter(starter Starter) Option {
	return func(c *Client) {
		if starter != nil {
			c.starter = starter
		}
	}
}

// WithProgressHandler forwards every progress notification to fn.
func WithProgressHandler(fn func(Progress)) Option {
	return func(c *Client) {
		c.onProgress = fn
	}
}

// Client speaks JSON-RPC 2.0 with the alignment service over stdio. One
// request is in flight at a time.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	starter    Starter
	onProgress func(Progress)

	progressMu sync.Mutex
	sampler    *logging.ProgressSampler

	callMu  sync.Mutex
	startMu sync.Mutex
	session *session
	nextID  atomic.Int64
}

type session struct {
	proc    *Process
	group   *errgroup.Group
	ready   chan struct{}
	exited  chan struct{}
	writeMu sync.Mutex

	mu       sync.Mutex
	pending  map[int64]chan rpcMessage
	readErr  error
	stderrTl []string
}

// NewClient constructs a client. The service process is started lazily.
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg.withDefaults(),
		logger:  logging.NewComponentLogger(logger, "whisperx"),
		starter: execStarter,
		sampler: logging.NewProgressSampler(progressBucketPc),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start launches the service, waits for its ready notification and loads the
// model. It is a no-op while a live session exists.
func (c *Client) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if s := c.session; s != nil {
		select {
		case <-s.exited:
			c.logger.Warn("alignment service exited; restarting", logging.Error(s.exitError()))
			c.session = nil
			c.terminate(s)
		default:
			return nil
		}
	}

	args := []string{"-m", c.cfg.Module}
	env := []string{"PYTHONUNBUFFERED=1"}
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	proc, err := c.starter(ctx, c.cfg.PythonBinary, args, env)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "start service", c.cfg.PythonBinary, err)
	}

	s := &session{
		proc:    proc,
		ready:   make(chan struct{}),
		exited:  make(chan struct{}),
		pending: make(map[int64]chan rpcMessage),
	}
	s.group = new(errgroup.Group)
	s.group.Go(func() error { return c.readStdout(s) })
	s.group.Go(func() error { return c.pumpStderr(s) })

	c.logger.Info("alignment service starting",
		logging.String("python", c.cfg.PythonBinary),
		logging.String("module", c.cfg.Module),
	)

	timer := time.NewTimer(c.cfg.StartupTimeout)
	defer timer.Stop()
	select {
	case <-s.ready:
	case <-s.exited:
		err = services.Wrap(services.ErrExternalTool, stageName, "start service", "exited before ready", s.exitError())
	case <-timer.C:
		err = services.Wrap(services.ErrTimeout, stageName, "start service",
			fmt.Sprintf("no ready notification within %s", c.cfg.StartupTimeout), nil)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		c.terminate(s)
		return err
	}

	params := initializeParams{
		Model:       c.cfg.Model,
		Language:    c.cfg.Language,
		Device:      c.cfg.Device,
		ComputeType: c.cfg.ComputeType,
		HFToken:     c.cfg.HFToken,
	}
	c.resetProgress()
	if err := c.call(ctx, s, "initialize", params, nil); err != nil {
		c.terminate(s)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, stageName, "initialize", "model load failed", err)
	}
	c.session = s
	c.reportReady(ctx, s)
	return nil
}

// reportReady logs the device and language the service actually loaded. The
// service may override the requested device, e.g. MLX always runs on mps.
func (c *Client) reportReady(ctx context.Context, s *session) {
	status, err := c.queryStatus(ctx, s)
	if err != nil {
		c.logger.Warn("alignment service status unavailable", logging.Error(err))
		return
	}
	c.logger.Info("alignment service ready",
		logging.String("model", c.cfg.Model),
		logging.String("language", status.Language),
		logging.String("device", status.Device),
		logging.Bool("initialized", status.Initialized),
	)
	if status.Device != "" && status.Device != c.cfg.Device {
		logging.WarnWithContext(c.logger, "alignment service runs on a different device", "alignment_device_override",
			logging.String("requested", c.cfg.Device),
			logging.String("device", status.Device),
			logging.String(logging.FieldImpact, "alignment speed differs from configuration"),
			logging.String(logging.FieldErrorHint, "set alignment.device to the device the service reports"),
		)
	}
}

func (c *Client) queryStatus(ctx context.Context, s *session) (Status, error) {
	var status Status
	if err := c.call(ctx, s, "get_status", struct{}{}, &status); err != nil {
		return status, services.Wrap(services.ErrExternalTool, stageName, "status", "request failed", err)
	}
	return status, nil
}

// Align runs forced alignment of segments against audioPath. The returned
// slice is positionally parallel to segments as reported by the service.
func (c *Client) Align(ctx context.Context, audioPath string, segments []Segment) ([]AlignedSegment, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, services.Wrap(services.ErrValidation, stageName, "align", "audio path required", nil)
	}
	if len(segments) == 0 {
		return []AlignedSegment{}, nil
	}

	c.callMu.Lock()
	defer c.callMu.Unlock()

	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	s := c.currentSession()
	if s == nil {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "align", "service not running", nil)
	}

	c.resetProgress()
	var result AlignResult
	err := c.call(ctx, s, "align", alignParams{AudioPath: audioPath, Segments: segments}, &result)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			c.notify(s, "cancel")
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrExternalTool, stageName, "align", "alignment request failed", err)
	}
	if result.Cancelled {
		return nil, services.Wrap(services.ErrExternalTool, stageName, "align", "service cancelled the request", nil)
	}
	if len(result.Segments) != len(segments) {
		c.logger.Warn("aligned segment count differs from request",
			logging.Int("requested", len(segments)),
			logging.Int("returned", len(result.Segments)),
			logging.String(logging.FieldEventType, "alignment_count_mismatch"),
		)
	}
	return result.Segments, nil
}

// Close asks the service to shut down and waits for the process to exit.
func (c *Client) Close() error {
	c.startMu.Lock()
	s := c.session
	c.session = nil
	c.startMu.Unlock()
	if s == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.call(ctx, s, "shutdown", struct{}{}, nil); err != nil {
		c.logger.Debug("shutdown request failed", logging.Error(err))
	}
	_ = s.proc.Stdin.Close()

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()
	select {
	case <-done:
	case <-time.After(shutdownTimeout):
		c.logger.Warn("alignment service did not exit; killing")
		if s.proc.Kill != nil {
			_ = s.proc.Kill()
		}
		<-done
	}
	if s.proc.Wait != nil {
		if err := s.proc.Wait(); err != nil {
			return services.Wrap(services.ErrExternalTool, stageName, "shutdown", "process exit", err)
		}
	}
	return nil
}

func (c *Client) currentSession() *session {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	return c.session
}

func (c *Client) call(ctx context.Context, s *session, method string, params, out any) error {
	id := c.nextID.Add(1)
	ch := make(chan rpcMessage, 1)
	s.mu.Lock()
	s.pending[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	if err := s.write(rpcRequest{JSONRPC: jsonRPCVersion, Method: method, Params: params, ID: &id}); err != nil {
		return fmt.Errorf("send %s: %w", method, err)
	}

	var msg rpcMessage
	select {
	case msg = <-ch:
	case <-s.exited:
		select {
		case msg = <-ch:
		default:
			return s.exitError()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	if msg.Error != nil {
		return msg.Error
	}
	if out != nil && len(msg.Result) > 0 {
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// notify sends a request without an id; the service does not answer it.
func (c *Client) notify(s *session, method string) {
	if err := s.write(rpcRequest{JSONRPC: jsonRPCVersion, Method: method, Params: struct{}{}}); err != nil {
		c.logger.Debug("notification failed", logging.String("method", method), logging.Error(err))
	}
}

func (s *session) write(req rpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.proc.Stdin.Write(data)
	return err
}

func (c *Client) readStdout(s *session) error {
	scanner := bufio.NewScanner(s.proc.Stdout)
	scanner.Buffer(make([]byte, 64*1024), maxStdoutLine)
	readySeen := false
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var msg rpcMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			c.logger.Debug("non-protocol output", logging.String("line", string(line)))
			continue
		}
		switch {
		case msg.ID != nil:
			s.mu.Lock()
			ch, ok := s.pending[*msg.ID]
			s.mu.Unlock()
			if ok {
				ch <- msg
			} else {
				c.logger.Debug("response without pending request", logging.Int64("id", *msg.ID))
			}
		case msg.Method == "ready":
			if !readySeen {
				readySeen = true
				var ready struct {
					Version string `json:"version"`
				}
				_ = json.Unmarshal(msg.Params, &ready)
				c.logger.Debug("alignment service ready notification", logging.String("version", ready.Version))
				close(s.ready)
			}
		case msg.Method == "progress":
			var p Progress
			if err := json.Unmarshal(msg.Params, &p); err == nil {
				c.handleProgress(p)
			}
		case msg.Error != nil:
			c.logger.Warn("service reported error without request id",
				logging.Int("code", msg.Error.Code),
				logging.String("message", msg.Error.Message),
			)
		}
	}
	err := scanner.Err()
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
	close(s.exited)
	return err
}

func (c *Client) pumpStderr(s *session) error {
	if s.proc.Stderr == nil {
		return nil
	}
	scanner := bufio.NewScanner(s.proc.Stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c.logger.Debug("service stderr", logging.String("line", line))
		s.mu.Lock()
		s.stderrTl = append(s.stderrTl, line)
		if len(s.stderrTl) > stderrTailLines {
			s.stderrTl = s.stderrTl[len(s.stderrTl)-stderrTailLines:]
		}
		s.mu.Unlock()
	}
	return scanner.Err()
}

func (s *session) exitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := "alignment service exited"
	if len(s.stderrTl) > 0 {
		msg += ": " + s.stderrTl[len(s.stderrTl)-1]
	}
	if s.readErr != nil {
		return fmt.Errorf("%s: %w", msg, s.readErr)
	}
	return errors.New(msg)
}

func (c *Client) terminate(s *session) {
	if s.proc.Kill != nil {
		_ = s.proc.Kill()
	}
	_ = s.proc.Stdin.Close()
	_ = s.group.Wait()
	if s.proc.Wait != nil {
		_ = s.proc.Wait()
	}
}

func (c *Client) handleProgress(p Progress) {
	if c.onProgress != nil {
		c.onProgress(p)
	}
	c.progressMu.Lock()
	emit := c.sampler.ShouldLog(p.Stage, p.Percent)
	c.progressMu.Unlock()
	if emit {
		c.logger.Info("alignment progress",
			logging.String(logging.FieldStage, p.Stage),
			logging.Float64("percent", p.Percent),
			logging.String("message", p.Message),
		)
	}
}

func (c *Client) resetProgress() {
	c.progressMu.Lock()
	c.sampler.Reset()
	c.progressMu.Unlock()
}

func execStarter(_ context.Context, name string, args, env []string) (*Process, error) {
	cmd := exec.Command(name, args...) //nolint:gosec
	cmd.Env = append(os.Environ(), env...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &Process{
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Wait:   cmd.Wait,
		Kill: func() error {
			if cmd.Process == nil {
				return nil
			}
			return cmd.Process.Kill()
		},
	}, nil
}
