// Command rdfpipe reads RDF files, applies a chain of stages and writes the
// result as N-Quads.
//
//	rdfpipe -s smush -s mapreduce --key s --aggregate 's <http://example.org/count> n' data/*.nq.gz
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/KimMachineGun/automemlimit/memlimit"
	flags "github.com/jessevdk/go-flags"
	"github.com/klauspost/compress/gzip"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/geoknoesis/rdfstream/internal/config"
	"github.com/geoknoesis/rdfstream/internal/monitoring"
	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

type options struct {
	Config          string   `short:"c" long:"config" description:"YAML configuration file"`
	Output          string   `short:"o" long:"output" default:"-" description:"Output file, - for standard output; a .gz suffix compresses"`
	Stages          []string `short:"s" long:"stage" choice:"smush" choice:"mapreduce" choice:"unique" choice:"rules" description:"Stage to apply, in order; repeatable"`
	Key             string   `long:"key" default:"s" description:"mapreduce: key components among s, p, o, c, or e for subject plus resource object"`
	Aggregate       string   `long:"aggregate" description:"mapreduce: emit one statement per group, e.g. 's <http://example.org/count> n'"`
	MergeContexts   bool     `long:"merge-contexts" description:"unique: emit a triple once across graphs"`
	SameAs          []string `long:"sameas" description:"smush: read the owl:sameAs links from this file instead of the input; repeatable"`
	Rules           string   `long:"rules" description:"rules: YAML ruleset file"`
	Engine          string   `long:"engine" default:"naive" description:"rules: evaluation engine"`
	Dedup           bool     `long:"dedup" description:"rules: remove duplicates from the output"`
	ScopeBlankNodes bool     `long:"scope-bnodes" description:"Give the blank nodes of each input file a distinct prefix"`
	Progress        int64    `long:"progress" default:"1000000" description:"Log progress every N statements at debug level, 0 disables"`
	LogLevel        string   `long:"log-level" description:"Override the configured log level"`

	Args struct {
		Inputs []string `positional-arg-name:"input" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if limit, err := memlimit.SetGoMemLimitWithOpts(memlimit.WithRatio(0.9)); err == nil {
		logger.WithField("action", "startup").WithField("limit", limit).Debug("GOMEMLIMIT set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, opts, logger)
	stop()
	if err != nil {
		logger.WithError(err).Error("rdfpipe failed")
		if pipeline.IsConfigurationError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger *logrus.Logger) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	logger.SetLevel(cfg.Level())

	var metrics *monitoring.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = monitoring.NewMetrics(reg)
		srv := serveMetrics(cfg.MetricsAddr, reg, logger)
		defer srv.Close()
	}

	proc, err := buildChain(opts, cfg, logger, metrics)
	if err != nil {
		return err
	}

	out, err := openOutput(opts.Output)
	if err != nil {
		return err
	}
	enc, err := rdf.NewEncoder(out, rdf.FormatNQuads)
	if err != nil {
		out.Close()
		return err
	}
	sink := pipeline.NewEncoderSink(enc)

	started := time.Now()
	src := pipeline.NewFileSource(opts.Args.Inputs, sourceOptions(opts, logger)...)
	err = pipeline.Apply(ctx, src, proc, sink, 1)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = pipeline.NewHandlerError("output", cerr)
	}
	if err != nil {
		return err
	}
	logger.WithField("action", "run").
		WithField("statements", sink.Written()).
		WithField("took", time.Since(started)).
		Info("pipeline completed")
	return nil
}

func sourceOptions(opts options, logger logrus.FieldLogger) []pipeline.FileOption {
	fileOpts := []pipeline.FileOption{pipeline.WithSourceLogger(logger)}
	if opts.ScopeBlankNodes {
		fileOpts = append(fileOpts, pipeline.WithBlankNodeScoping())
	}
	return fileOpts
}

func serveMetrics(addr string, reg *prometheus.Registry, logger logrus.FieldLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithField("action", "metrics").WithError(err).Warn("metrics endpoint stopped")
		}
	}()
	logger.WithField("action", "metrics").WithField("addr", addr).Info("serving metrics")
	return srv
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type gzipOutput struct {
	*gzip.Writer
	file *os.File
}

func (g *gzipOutput) Close() error {
	err := g.Writer.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, pipeline.NewHandlerError("output", pkgerrors.Wrap(err, "create"))
	}
	if strings.HasSuffix(path, ".gz") {
		return &gzipOutput{Writer: gzip.NewWriter(f), file: f}, nil
	}
	return f, nil
}
