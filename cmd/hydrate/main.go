// Command hydrate turns flat joined rows into nested entries.
//
//	hydrate -config job.json [-metrics-backend none|datadog] [-validate] [-v]
//	hydrate -example
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	gojson "github.com/goccy/go-json"

	"rownest/internal/catalog"
	"rownest/internal/config"
	"rownest/internal/metrics"
	"rownest/internal/metrics/datadog"
	"rownest/internal/nest"
	"rownest/internal/pipeline"

	_ "rownest/internal/source/all"
	_ "rownest/internal/storage/all"
)

const usageLine = "usage: hydrate -config <job.json> [-metrics-backend none|datadog] [-validate] [-v] | hydrate -example"

// runner is the part of *pipeline.Runner the CLI needs.
type runner interface {
	Run(ctx context.Context, job config.Job) (pipeline.Result, error)
}

// appDeps are the side-effecting seams of runMain.
type appDeps struct {
	readFile    func(path string) ([]byte, error)
	unmarshal   func(data []byte, v any) error
	newRunner   func(stdout io.Writer, logger pipeline.Logger) runner
	initMetrics func(ctx context.Context, jobName, backendName string) (func(), error)
}

func defaultDeps() appDeps {
	return appDeps{
		readFile:  os.ReadFile,
		unmarshal: gojson.Unmarshal,
		newRunner: func(stdout io.Writer, logger pipeline.Logger) runner {
			return pipeline.NewRunner(stdout, logger)
		},
		initMetrics: initMetrics,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// runMain returns the process exit code: 0 on success, 2 on usage errors and
// 1 on any other failure.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	fs := flag.NewFlagSet("hydrate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		cfgPath        string
		metricsBackend string
		validateOnly   bool
		example        bool
		verbose        bool
	)
	fs.StringVar(&cfgPath, "config", "", "job config JSON path")
	fs.StringVar(&metricsBackend, "metrics-backend", os.Getenv("METRICS_BACKEND"), "metrics backend (none|datadog)")
	fs.BoolVar(&validateOnly, "validate", false, "validate the job and its schema, then exit")
	fs.BoolVar(&example, "example", false, "hydrate the built-in album rows and print JSON")
	fs.BoolVar(&verbose, "v", false, "enable stage logs on stderr")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfgPath = strings.TrimSpace(cfgPath)
	if (cfgPath == "" && !example) || (cfgPath != "" && example) {
		fmt.Fprintln(stderr, usageLine)
		return 2
	}

	var job config.Job
	if example {
		job = exampleJob()
	} else {
		data, err := deps.readFile(cfgPath)
		if err != nil {
			fmt.Fprintf(stderr, "read config: %v\n", err)
			return 1
		}
		if err := deps.unmarshal(data, &job); err != nil {
			fmt.Fprintf(stderr, "parse config: %v\n", err)
			return 1
		}
	}

	if validateOnly {
		return validateJob(job, stdout, stderr)
	}

	cleanup, err := deps.initMetrics(ctx, job.JobName(), metricsBackend)
	if err != nil {
		fmt.Fprintf(stderr, "init metrics: %v\n", err)
		return 1
	}
	defer cleanup()

	logger := log.New(io.Discard, "", 0)
	if verbose {
		logger = log.New(stderr, "", log.LstdFlags)
	}

	start := time.Now()
	res, err := deps.newRunner(stdout, logger).Run(ctx, job)
	if err != nil {
		var ve *pipeline.ValidationError
		if errors.As(err, &ve) {
			for _, iss := range ve.Issues {
				fmt.Fprintln(stderr, iss.String())
			}
		}
		fmt.Fprintf(stderr, "run: %v\n", err)
		return 1
	}

	if verbose {
		logger.Printf("completed run_id=%s rows=%d entries=%d written=%d unchanged=%d in %s",
			res.RunID, res.Rows, res.Entries, res.Written, res.Unchanged, time.Since(start).Truncate(time.Millisecond))
	}
	return 0
}

func exampleJob() config.Job {
	return config.Job{
		Job:    "example",
		Source: config.Source{Kind: config.SourceExample},
		Schema: catalog.AlbumsSchema,
		Output: config.Output{Format: "json", Indent: true},
	}
}

// validateJob prints every issue to stderr and the columns the schema reads
// to stdout. It returns 1 if the job or the schema is invalid.
func validateJob(job config.Job, stdout, stderr io.Writer) int {
	issues := config.ValidateJob(job, catalog.Names())
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss.String())
	}
	if config.HasErrors(issues) {
		fmt.Fprintln(stderr, "job is invalid")
		return 1
	}

	props, _ := catalog.Lookup(job.Schema)
	if err := nest.Validate(props); err != nil {
		fmt.Fprintf(stderr, "schema %s: %v\n", job.Schema, err)
		return 1
	}

	fmt.Fprintf(stdout, "schema %s reads columns: %s\n", job.Schema, strings.Join(nest.Columns(props), ", "))
	fmt.Fprintln(stdout, "ok")
	return 0
}

// ---- metrics wiring ----

// metricsBackend is what initMetrics needs from a constructed backend.
type metricsBackend interface {
	Close() error
}

var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	setMetricsBackend = func(b any) {
		mb, _ := b.(metrics.Backend)
		metrics.SetBackend(mb)
	}
	logPrintf = log.Printf
)

// initMetrics installs the selected backend. The returned cleanup is never
// nil and is safe to call on every path.
func initMetrics(ctx context.Context, jobName, backendName string) (func(), error) {
	noop := func() {}

	switch strings.ToLower(strings.TrimSpace(backendName)) {
	case "", "none", "noop":
		return noop, nil

	case "datadog", "dd":
		b, err := newDatadogBackend(ctx, datadog.Options{
			JobName:    jobName,
			Tags:       datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS")),
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			return noop, datadog.WrapInitErr(err)
		}
		setMetricsBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logPrintf("metrics: datadog close error: %v", err)
			}
			setMetricsBackend(nil)
		}, nil

	default:
		return noop, fmt.Errorf("unknown metrics backend %q (none|datadog)", backendName)
	}
}
