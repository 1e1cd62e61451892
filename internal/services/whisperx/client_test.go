package whisperx

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"wordsync/internal/services"
)

type fakeRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type fakeService struct {
	mu       sync.Mutex
	requests []fakeRequest
	starts   int
	handle   func(req fakeRequest, enc *json.Encoder)
}

func (f *fakeService) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, r := range f.requests {
		out = append(out, r.Method)
	}
	return out
}

func (f *fakeService) request(method string) (fakeRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.Method == method {
			return r, true
		}
	}
	return fakeRequest{}, false
}

func (f *fakeService) starter() Starter {
	return func(_ context.Context, name string, args, env []string) (*Process, error) {
		f.mu.Lock()
		f.starts++
		f.mu.Unlock()

		inR, inW := io.Pipe()
		outR, outW := io.Pipe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer outW.Close()
			enc := json.NewEncoder(outW)
			_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "method": "ready", "params": map[string]any{"version": "1.0.0"}})
			scanner := bufio.NewScanner(inR)
			for scanner.Scan() {
				var req fakeRequest
				if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
					continue
				}
				f.mu.Lock()
				f.requests = append(f.requests, req)
				f.mu.Unlock()
				f.handle(req, enc)
			}
		}()
		return &Process{
			Stdin:  inW,
			Stdout: outR,
			Stderr: strings.NewReader("loading model\n"),
			Wait: func() error {
				<-done
				return nil
			},
			Kill: func() error {
				return inR.Close()
			},
		}, nil
	}
}

func reply(enc *json.Encoder, id *int64, result any) {
	_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "id": *id, "result": result})
}

func replyError(enc *json.Encoder, id *int64, code int, message string) {
	_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "id": *id, "error": map[string]any{"code": code, "message": message}})
}

func standardHandler(align func(req fakeRequest, enc *json.Encoder)) func(req fakeRequest, enc *json.Encoder) {
	return func(req fakeRequest, enc *json.Encoder) {
		switch req.Method {
		case "initialize":
			reply(enc, req.ID, map[string]any{"status": "initialized", "model": "large-v3"})
		case "shutdown":
			reply(enc, req.ID, map[string]any{"status": "shutdown"})
		case "get_status":
			reply(enc, req.ID, map[string]any{"initialized": true, "processing": false, "device": "mps", "language": "de"})
		case "align":
			align(req, enc)
		}
	}
}

func TestAlignRoundTrip(t *testing.T) {
	fake := &fakeService{}
	fake.handle = standardHandler(func(req fakeRequest, enc *json.Encoder) {
		_ = enc.Encode(map[string]any{"jsonrpc": "2.0", "method": "progress", "params": map[string]any{"stage": "aligning", "percent": 50, "message": "working"}})
		reply(enc, req.ID, map[string]any{
			"segments": []map[string]any{{
				"text": "Hallo Welt", "start": 1.0, "end": 2.0,
				"words": []map[string]any{
					{"word": "Hallo", "start": 1.0, "end": 1.4, "score": 0.91},
					{"word": "Welt", "start": 1.5, "end": 2.0, "score": 0.88},
				},
			}},
			"language": "de",
			"duration": 10.0,
		})
	})

	var progressMu sync.Mutex
	var progress []Progress
	client := NewClient(Config{Model: "large-v3", Language: "de"}, nil,
		WithStarter(fake.starter()),
		WithProgressHandler(func(p Progress) {
			progressMu.Lock()
			progress = append(progress, p)
			progressMu.Unlock()
		}),
	)

	got, err := client.Align(context.Background(), "/tmp/audio.wav", []Segment{{Text: "Hallo Welt", Start: 1, End: 2}})
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	if len(got) != 1 || len(got[0].Words) != 2 {
		t.Fatalf("unexpected segments: %#v", got)
	}
	if got[0].Words[1].Word != "Welt" || got[0].Words[1].Score != 0.88 {
		t.Fatalf("unexpected word: %#v", got[0].Words[1])
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	methods := fake.methods()
	want := []string{"initialize", "get_status", "align", "shutdown"}
	if strings.Join(methods, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected call sequence %v", methods)
	}

	initReq, _ := fake.request("initialize")
	var initParams initializeParams
	if err := json.Unmarshal(initReq.Params, &initParams); err != nil {
		t.Fatalf("decode initialize params: %v", err)
	}
	if initParams.Model != "large-v3" || initParams.Language != "de" || initParams.Device != DefaultDevice {
		t.Fatalf("unexpected initialize params: %#v", initParams)
	}

	alignReq, _ := fake.request("align")
	var params alignParams
	if err := json.Unmarshal(alignReq.Params, &params); err != nil {
		t.Fatalf("decode align params: %v", err)
	}
	if params.AudioPath != "/tmp/audio.wav" || len(params.Segments) != 1 || params.Segments[0].Text != "Hallo Welt" {
		t.Fatalf("unexpected align params: %#v", params)
	}

	progressMu.Lock()
	defer progressMu.Unlock()
	if len(progress) != 1 || progress[0].Stage != "aligning" || progress[0].Percent != 50 {
		t.Fatalf("unexpected progress: %#v", progress)
	}
}

func TestAlignReusesRunningService(t *testing.T) {
	fake := &fakeService{}
	fake.handle = standardHandler(func(req fakeRequest, enc *json.Encoder) {
		reply(enc, req.ID, map[string]any{"segments": []map[string]any{{"text": "a", "start": 0, "end": 1, "words": []any{}}}})
	})
	client := NewClient(Config{}, nil, WithStarter(fake.starter()))
	defer client.Close()

	for i := 0; i < 2; i++ {
		if _, err := client.Align(context.Background(), "/a.wav", []Segment{{Text: "a", End: 1}}); err != nil {
			t.Fatalf("Align %d failed: %v", i, err)
		}
	}
	fake.mu.Lock()
	starts := fake.starts
	fake.mu.Unlock()
	if starts != 1 {
		t.Fatalf("expected one process start, got %d", starts)
	}
}

func TestAlignRPCError(t *testing.T) {
	fake := &fakeService{}
	fake.handle = standardHandler(func(req fakeRequest, enc *json.Encoder) {
		replyError(enc, req.ID, CodeInternalError, "audio file not found")
	})
	client := NewClient(Config{}, nil, WithStarter(fake.starter()))
	defer client.Close()

	_, err := client.Align(context.Background(), "/missing.wav", []Segment{{Text: "a", End: 1}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool marker, got %v", err)
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeInternalError {
		t.Fatalf("expected RPCError, got %v", err)
	}
	if !strings.Contains(err.Error(), "audio file not found") {
		t.Fatalf("expected service message in %q", err.Error())
	}
}

func TestAlignCancellationSendsCancel(t *testing.T) {
	cancelSeen := make(chan struct{})
	var once sync.Once
	fake := &fakeService{}
	fake.handle = func(req fakeRequest, enc *json.Encoder) {
		switch req.Method {
		case "initialize":
			reply(enc, req.ID, map[string]any{"status": "initialized"})
		case "shutdown":
			reply(enc, req.ID, map[string]any{"status": "shutdown"})
		case "get_status":
			reply(enc, req.ID, map[string]any{"initialized": true, "device": "cpu", "language": "de"})
		case "cancel":
			once.Do(func() { close(cancelSeen) })
		case "align":
			// never answers
		}
	}
	client := NewClient(Config{}, nil, WithStarter(fake.starter()))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := client.Align(ctx, "/a.wav", []Segment{{Text: "a", End: 1}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	select {
	case <-cancelSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("expected cancel notification")
	}
}

func TestAlignValidatesInput(t *testing.T) {
	fake := &fakeService{handle: func(fakeRequest, *json.Encoder) {}}
	client := NewClient(Config{}, nil, WithStarter(fake.starter()))

	if _, err := client.Align(context.Background(), " ", []Segment{{Text: "a"}}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, err := client.Align(context.Background(), "/a.wav", nil)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty result, got %v %v", got, err)
	}
	if fake.starts != 0 {
		t.Fatalf("expected no process start, got %d", fake.starts)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func TestStartFailsWhenServiceExitsEarly(t *testing.T) {
	starter := func(context.Context, string, []string, []string) (*Process, error) {
		return &Process{
			Stdin:  nopWriteCloser{io.Discard},
			Stdout: strings.NewReader(""),
			Stderr: strings.NewReader("ModuleNotFoundError: No module named 'whisperx'\n"),
			Wait:   func() error { return errors.New("exit status 1") },
		}, nil
	}
	client := NewClient(Config{StartupTimeout: time.Second}, nil, WithStarter(starter))

	_, err := client.Align(context.Background(), "/a.wav", []Segment{{Text: "a", End: 1}})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close without session should succeed: %v", err)
	}
}

func TestStarterErrorIsWrapped(t *testing.T) {
	starter := func(context.Context, string, []string, []string) (*Process, error) {
		return nil, errors.New("exec: \"python3\": executable file not found in $PATH")
	}
	client := NewClient(Config{}, nil, WithStarter(starter))
	_, err := client.Align(context.Background(), "/a.wav", []Segment{{Text: "a", End: 1}})
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "python3") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStartLogsReportedDevice(t *testing.T) {
	fake := &fakeService{}
	fake.handle = standardHandler(func(req fakeRequest, enc *json.Encoder) {
		reply(enc, req.ID, map[string]any{"segments": []any{}})
	})
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	client := NewClient(Config{Language: "de", Device: "cuda"}, logger, WithStarter(fake.starter()))
	defer client.Close()

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	var ready, override map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		switch entry["msg"] {
		case "alignment service ready":
			ready = entry
		case "alignment service runs on a different device":
			override = entry
		}
	}
	if ready == nil || ready["device"] != "mps" || ready["language"] != "de" || ready["initialized"] != true {
		t.Fatalf("unexpected ready entry: %v", ready)
	}
	if override == nil || override["requested"] != "cuda" || override["event_type"] != "alignment_device_override" {
		t.Fatalf("expected device override warning, got %v", override)
	}
}

func TestStatusDecodesServiceKeys(t *testing.T) {
	var status Status
	payload := `{"initialized":true,"processing":true,"device":"mps","language":"de"}`
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Status{Initialized: true, Processing: true, Device: "mps", Language: "de"}
	if status != want {
		t.Fatalf("status = %#v, want %#v", status, want)
	}
}
