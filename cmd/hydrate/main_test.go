package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	gojson "github.com/goccy/go-json"

	"rownest/internal/config"
	"rownest/internal/metrics/datadog"
	"rownest/internal/pipeline"
)

// fakeRunner records the job it receives and returns a configurable result.
type fakeRunner struct {
	err   error
	calls atomic.Int64

	mu      sync.Mutex
	lastJob config.Job
}

func (r *fakeRunner) Run(_ context.Context, job config.Job) (pipeline.Result, error) {
	r.calls.Add(1)
	r.mu.Lock()
	r.lastJob = job
	r.mu.Unlock()
	return pipeline.Result{RunID: "r1"}, r.err
}

type fakeMetricsBackend struct {
	closeErr error
	closed   atomic.Int64
}

func (b *fakeMetricsBackend) Close() error {
	b.closed.Add(1)
	return b.closeErr
}

func failingDeps(t *testing.T) appDeps {
	return appDeps{
		readFile: func(string) ([]byte, error) {
			t.Fatalf("readFile must not be called")
			return nil, nil
		},
		unmarshal: func([]byte, any) error {
			t.Fatalf("unmarshal must not be called")
			return nil
		},
		newRunner: func(io.Writer, pipeline.Logger) runner {
			t.Fatalf("newRunner must not be called")
			return &fakeRunner{}
		},
		initMetrics: func(context.Context, string, string) (func(), error) {
			t.Fatalf("initMetrics must not be called")
			return func() {}, nil
		},
	}
}

func TestRunMain_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		args          []string
		wantStderrSub string
	}{
		{name: "missing_config_flag", args: []string{}, wantStderrSub: "usage: hydrate -config"},
		{name: "empty_config_value", args: []string{"-config", "   "}, wantStderrSub: "usage: hydrate -config"},
		{name: "config_and_example", args: []string{"-config", "a.json", "-example"}, wantStderrSub: "usage: hydrate -config"},
		{name: "unknown_flag", args: []string{"-nope"}, wantStderrSub: "flag provided but not defined"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), tc.args, &stdout, &stderr, failingDeps(t))

			if code != 2 {
				t.Fatalf("exit code=%d, want 2; stderr=%q", code, stderr.String())
			}
			if !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if stdout.Len() != 0 {
				t.Fatalf("stdout=%q, want empty", stdout.String())
			}
		})
	}
}

func TestRunMain_ReadParseMetricsRun_FullFlow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		readErr          error
		unmarshalErr     error
		initMetricsErr   error
		runErr           error
		wantCode         int
		wantStderrSub    string
		wantRunnerCalls  int64
		wantCleanupCalls int64
	}{
		{name: "read_config_error", readErr: errors.New("no such file"), wantCode: 1, wantStderrSub: "read config:"},
		{name: "parse_config_error", unmarshalErr: errors.New("bad json"), wantCode: 1, wantStderrSub: "parse config:"},
		{name: "init_metrics_error", initMetricsErr: errors.New("metrics unavailable"), wantCode: 1, wantStderrSub: "init metrics:"},
		{name: "runner_error_runs_cleanup", runErr: errors.New("db failed"), wantCode: 1, wantStderrSub: "run: db failed", wantRunnerCalls: 1, wantCleanupCalls: 1},
		{name: "success", wantCode: 0, wantRunnerCalls: 1, wantCleanupCalls: 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			fr := &fakeRunner{err: tc.runErr}
			var cleanupCalls atomic.Int64

			deps := appDeps{
				readFile: func(path string) ([]byte, error) {
					if path != "cfg.json" {
						t.Fatalf("readFile path=%q, want cfg.json", path)
					}
					return []byte(`{"job":"job1"}`), tc.readErr
				},
				unmarshal: func(data []byte, v any) error {
					if tc.unmarshalErr != nil {
						return tc.unmarshalErr
					}
					j, ok := v.(*config.Job)
					if !ok {
						t.Fatalf("unmarshal target type=%T, want *config.Job", v)
					}
					j.Job = "job1"
					return nil
				},
				initMetrics: func(_ context.Context, jobName, backendName string) (func(), error) {
					if jobName != "job1" || backendName != "none" {
						t.Fatalf("initMetrics(%q,%q)", jobName, backendName)
					}
					if tc.initMetricsErr != nil {
						return func() {}, tc.initMetricsErr
					}
					return func() { cleanupCalls.Add(1) }, nil
				},
				newRunner: func(w io.Writer, _ pipeline.Logger) runner {
					if w != &stdout {
						t.Fatalf("runner must write to stdout")
					}
					return fr
				},
			}

			code := runMain(context.Background(), []string{"-config", "cfg.json", "-metrics-backend", "none"}, &stdout, &stderr, deps)

			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if tc.wantStderrSub != "" && !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
			if got := fr.calls.Load(); got != tc.wantRunnerCalls {
				t.Fatalf("runner calls=%d, want %d", got, tc.wantRunnerCalls)
			}
			if got := cleanupCalls.Load(); got != tc.wantCleanupCalls {
				t.Fatalf("cleanup calls=%d, want %d", got, tc.wantCleanupCalls)
			}
		})
	}
}

func TestRunMain_ValidationErrorListsIssues(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	fr := &fakeRunner{err: &pipeline.ValidationError{Issues: []config.Issue{
		{Severity: config.SeverityError, Path: "schema", Message: "must be set"},
	}}}
	deps := appDeps{
		readFile:    func(string) ([]byte, error) { return []byte(`{}`), nil },
		unmarshal:   gojson.Unmarshal,
		initMetrics: func(context.Context, string, string) (func(), error) { return func() {}, nil },
		newRunner:   func(io.Writer, pipeline.Logger) runner { return fr },
	}

	code := runMain(context.Background(), []string{"-config", "job.json"}, &stdout, &stderr, deps)
	if code != 1 {
		t.Fatalf("exit code=%d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "error: schema: must be set\n") {
		t.Fatalf("stderr=%q, want issue line", stderr.String())
	}
}

func TestRunMain_Example(t *testing.T) {
	t.Parallel()

	deps := defaultDeps()
	deps.readFile = func(string) ([]byte, error) {
		t.Fatalf("-example must not read a config file")
		return nil, nil
	}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"-example", "-metrics-backend", "none"}, &stdout, &stderr, deps)
	if code != 0 {
		t.Fatalf("exit code=%d, stderr=%q", code, stderr.String())
	}

	var got []map[string]any
	if err := gojson.Unmarshal(stdout.Bytes(), &got); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if len(got) != 2 {
		t.Fatalf("entries=%d, want 2", len(got))
	}
	tracks, _ := got[0]["tracks"].([]any)
	if len(tracks) != 2 {
		t.Fatalf("album 1 tracks=%v, want 2", got[0]["tracks"])
	}
}

func TestRunMain_ValidateMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		job           string
		wantCode      int
		wantStdout    string
		wantStderrSub string
	}{
		{
			name:       "valid",
			job:        `{"job":"albums","source":{"kind":"example"},"schema":"albums"}`,
			wantCode:   0,
			wantStdout: "schema albums reads columns: artist_id, artist_name, id, name, track_id, track_title\nok\n",
		},
		{
			name:          "unknown_schema",
			job:           `{"job":"x","source":{"kind":"example"},"schema":"people"}`,
			wantCode:      1,
			wantStderrSub: `error: schema: unknown schema "people"`,
		},
		{
			name:          "file_without_path",
			job:           `{"source":{"kind":"file","format":"csv"},"schema":"albums"}`,
			wantCode:      1,
			wantStderrSub: "error: source.path: required for kind=file",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			deps := failingDeps(t)
			deps.readFile = func(string) ([]byte, error) { return []byte(tc.job), nil }
			deps.unmarshal = gojson.Unmarshal

			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), []string{"-config", "job.json", "-validate"}, &stdout, &stderr, deps)

			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if tc.wantStdout != "" && stdout.String() != tc.wantStdout {
				t.Fatalf("stdout=%q, want %q", stdout.String(), tc.wantStdout)
			}
			if tc.wantStderrSub != "" && !strings.Contains(stderr.String(), tc.wantStderrSub) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantStderrSub)
			}
		})
	}
}

// The initMetrics tests swap package-level seams and must not run in parallel.

func TestInitMetrics_None_DoesNotMutateGlobalState(t *testing.T) {
	oldSet := setMetricsBackend
	defer func() { setMetricsBackend = oldSet }()

	setMetricsBackend = func(any) {
		t.Fatalf("setMetricsBackend must not be called for none/noop")
	}

	for _, name := range []string{"", "none", "noop", " NONE "} {
		cleanup, err := initMetrics(context.Background(), "job", name)
		if err != nil {
			t.Fatalf("initMetrics(%q) err=%v, want nil", name, err)
		}
		if cleanup == nil {
			t.Fatalf("cleanup=nil, want non-nil")
		}
		cleanup()
	}
}

func TestInitMetrics_Datadog_WiresBackendAndCloses(t *testing.T) {
	b := &fakeMetricsBackend{}

	var (
		newCalls int
		setArgs  []any
		gotOpts  datadog.Options
	)

	oldNew, oldSet, oldLog := newDatadogBackend, setMetricsBackend, logPrintf
	defer func() {
		newDatadogBackend, setMetricsBackend, logPrintf = oldNew, oldSet, oldLog
	}()

	newDatadogBackend = func(_ context.Context, opts datadog.Options) (metricsBackend, error) {
		newCalls++
		gotOpts = opts
		return b, nil
	}
	setMetricsBackend = func(v any) { setArgs = append(setArgs, v) }

	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	t.Setenv("METRICS_TAGS", "service:hydrate, team:data")

	cleanup, err := initMetrics(context.Background(), "jobA", "datadog")
	if err != nil {
		t.Fatalf("initMetrics err=%v, want nil", err)
	}
	if gotOpts.JobName != "jobA" {
		t.Fatalf("JobName=%q, want jobA", gotOpts.JobName)
	}
	if len(gotOpts.Tags) != 2 || gotOpts.Tags[1] != "team:data" {
		t.Fatalf("Tags=%v", gotOpts.Tags)
	}
	if newCalls != 1 || len(setArgs) != 1 || setArgs[0] != metricsBackend(b) {
		t.Fatalf("newCalls=%d setArgs=%v", newCalls, setArgs)
	}

	cleanup()
	if b.closed.Load() != 1 {
		t.Fatalf("backend closed=%d, want 1", b.closed.Load())
	}
	if len(setArgs) != 2 || setArgs[1] != nil {
		t.Fatalf("cleanup must restore the no-op backend; setArgs=%v", setArgs)
	}
	if logged.Len() != 0 {
		t.Fatalf("unexpected log output: %q", logged.String())
	}
}

func TestInitMetrics_Datadog_CloseErrorIsLogged(t *testing.T) {
	b := &fakeMetricsBackend{closeErr: errors.New("flush failed")}

	oldNew, oldSet, oldLog := newDatadogBackend, setMetricsBackend, logPrintf
	defer func() {
		newDatadogBackend, setMetricsBackend, logPrintf = oldNew, oldSet, oldLog
	}()

	newDatadogBackend = func(context.Context, datadog.Options) (metricsBackend, error) { return b, nil }
	setMetricsBackend = func(any) {}

	var logged bytes.Buffer
	logPrintf = func(format string, v ...any) { fmt.Fprintf(&logged, format, v...) }

	cleanup, err := initMetrics(context.Background(), "job", "dd")
	if err != nil {
		t.Fatalf("initMetrics err=%v, want nil", err)
	}
	cleanup()

	if !strings.Contains(logged.String(), "metrics: datadog close error: flush failed") {
		t.Fatalf("log=%q, want close error", logged.String())
	}
}

func TestInitMetrics_Datadog_ConstructionError(t *testing.T) {
	oldNew := newDatadogBackend
	defer func() { newDatadogBackend = oldNew }()

	newDatadogBackend = func(context.Context, datadog.Options) (metricsBackend, error) {
		return nil, errors.New("no api key")
	}

	cleanup, err := initMetrics(context.Background(), "job", "datadog")
	if err == nil || !strings.Contains(err.Error(), "datadog metrics init: no api key") {
		t.Fatalf("err=%v", err)
	}
	cleanup()
}

func TestInitMetrics_UnknownBackendErrors(t *testing.T) {
	cleanup, err := initMetrics(context.Background(), "job", "nope")
	if err == nil {
		t.Fatalf("initMetrics err=nil, want error")
	}
	cleanup()

	if !strings.Contains(err.Error(), "unknown metrics backend") || !strings.Contains(err.Error(), "none|datadog") {
		t.Fatalf("err=%q", err.Error())
	}
}

func BenchmarkRunMain_Success_NoIO(b *testing.B) {
	ctx := context.Background()
	fr := &fakeRunner{}
	raw := []byte(`{"job":"job1"}`)

	deps := appDeps{
		readFile:    func(string) ([]byte, error) { return raw, nil },
		unmarshal:   func([]byte, any) error { return nil },
		initMetrics: func(context.Context, string, string) (func(), error) { return func() {}, nil },
		newRunner:   func(io.Writer, pipeline.Logger) runner { return fr },
	}
	args := []string{"-config", "cfg.json", "-metrics-backend", "none"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var stdout, stderr bytes.Buffer
		if code := runMain(ctx, args, &stdout, &stderr, deps); code != 0 {
			b.Fatalf("code=%d, stderr=%q", code, stderr.String())
		}
	}
}
