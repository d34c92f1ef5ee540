package pipeline

import (
	"context"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/geoknoesis/rdfstream/rdf"
)

// Source produces statements. Emit delivers passes full Start/End cycles to
// h and closes h exactly once before returning.
type Source interface {
	Emit(ctx context.Context, h Handler, passes int) error
}

// SliceSource emits an in-memory list of statements.
type SliceSource struct {
	statements []rdf.Quad
	namespaces map[string]string
	workers    int
}

// NewSliceSource returns a source over statements. With workers > 1 the
// statements of a pass are delivered concurrently.
func NewSliceSource(statements []rdf.Quad, workers int) *SliceSource {
	return &SliceSource{statements: statements, workers: workers}
}

// WithNamespaces sets prefix mappings announced at the start of each pass.
func (s *SliceSource) WithNamespaces(namespaces map[string]string) *SliceSource {
	s.namespaces = namespaces
	return s
}

func (s *SliceSource) Emit(ctx context.Context, h Handler, passes int) (err error) {
	defer func() { err = closeHandler(h, err) }()
	for pass := 0; pass < passes; pass++ {
		if err := h.Start(); err != nil {
			return NewHandlerError("start", err)
		}
		for prefix, iri := range s.namespaces {
			if err := h.Namespace(prefix, iri); err != nil {
				return NewHandlerError("namespace", err)
			}
		}
		if err := s.emitStatements(ctx, h); err != nil {
			return err
		}
		if err := h.End(); err != nil {
			return NewHandlerError("end", err)
		}
	}
	return nil
}

func (s *SliceSource) emitStatements(ctx context.Context, h Handler) error {
	workers := s.workers
	if workers <= 1 {
		for _, q := range s.statements {
			if err := ctx.Err(); err != nil {
				return NewSourceError("slice", err)
			}
			if err := h.Statement(q); err != nil {
				return NewHandlerError("statement", err)
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := w; i < len(s.statements); i += workers {
				if err := gctx.Err(); err != nil {
					return NewSourceError("slice", err)
				}
				if err := h.Statement(s.statements[i]); err != nil {
					return NewHandlerError("statement", err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// closeHandler closes h and merges the close error into err.
func closeHandler(h Handler, err error) error {
	closeErr := h.Close()
	if err != nil {
		return err
	}
	return NewHandlerError("close", closeErr)
}

// FileSource reads statements from files, decoding them concurrently. The
// format of each file comes from its extension; "-" denotes standard input,
// which can only be read for single pass runs.
type FileSource struct {
	paths       []string
	parallelism int
	scopeBlank  bool
	opts        []rdf.Option
	logger      logrus.FieldLogger

	scopesOnce sync.Once
	scopes     []string
}

// FileOption configures a FileSource.
type FileOption func(*FileSource)

// WithParallelism bounds the number of files decoded at once.
func WithParallelism(n int) FileOption {
	return func(s *FileSource) {
		s.parallelism = n
	}
}

// WithBlankNodeScoping gives the blank nodes of each file a unique prefix,
// stable across passes, so that labels from different files never clash.
func WithBlankNodeScoping() FileOption {
	return func(s *FileSource) {
		s.scopeBlank = true
	}
}

// WithDecodeOptions passes options to every decoder.
func WithDecodeOptions(opts ...rdf.Option) FileOption {
	return func(s *FileSource) {
		s.opts = append(s.opts, opts...)
	}
}

// WithSourceLogger sets the logger.
func WithSourceLogger(logger logrus.FieldLogger) FileOption {
	return func(s *FileSource) {
		s.logger = logger
	}
}

// NewFileSource returns a source reading paths.
func NewFileSource(paths []string, opts ...FileOption) *FileSource {
	s := &FileSource{
		paths:       paths,
		parallelism: runtime.GOMAXPROCS(0),
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FileSource) scope(i int) string {
	s.scopesOnce.Do(func() {
		s.scopes = make([]string, len(s.paths))
		for j := range s.scopes {
			s.scopes[j] = uuid.NewString()[:8] + "_"
		}
	})
	return s.scopes[i]
}

func (s *FileSource) Emit(ctx context.Context, h Handler, passes int) (err error) {
	defer func() { err = closeHandler(h, err) }()
	if passes > 1 {
		for _, path := range s.paths {
			if path == "-" {
				return NewSourceError("stdin", errors.Errorf("standard input cannot be read %d times", passes))
			}
		}
	}
	for pass := 0; pass < passes; pass++ {
		s.logger.WithField("action", "source_pass").WithField("pass", pass+1).
			WithField("files", len(s.paths)).Debug("reading input")
		if err := h.Start(); err != nil {
			return NewHandlerError("start", err)
		}
		g, gctx := errgroup.WithContext(ctx)
		if s.parallelism > 0 {
			g.SetLimit(s.parallelism)
		}
		for i, path := range s.paths {
			i, path := i, path
			g.Go(func() error {
				return s.read(gctx, i, path, h)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if err := h.End(); err != nil {
			return NewHandlerError("end", err)
		}
	}
	return nil
}

func (s *FileSource) read(ctx context.Context, i int, path string, h Handler) error {
	in, format, err := openInput(path)
	if err != nil {
		return NewSourceError(path, err)
	}
	defer in.Close()

	opts := append([]rdf.Option{}, s.opts...)
	if s.scopeBlank {
		opts = append(opts, rdf.OptBlankNodeScope(s.scope(i)))
	}
	var handlerErr error
	err = rdf.Parse(ctx, in, format, func(q rdf.Quad) error {
		if err := h.Statement(q); err != nil {
			handlerErr = NewHandlerError("statement", err)
			return handlerErr
		}
		return nil
	}, opts...)
	if handlerErr != nil {
		return handlerErr
	}
	return NewSourceError(path, err)
}

func openInput(path string) (io.ReadCloser, rdf.Format, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), rdf.FormatNQuads, nil
	}
	format, gzipped, ok := rdf.FormatFromPath(path)
	if !ok {
		return nil, "", errors.Wrapf(rdf.ErrUnsupportedFormat, "cannot infer format of %s", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "open")
	}
	if !gzipped {
		return f, format, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, "", errors.Wrap(err, "gzip")
	}
	return &gzipFile{Reader: zr, file: f}, format, nil
}

type gzipFile struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipFile) Close() error {
	err := g.Reader.Close()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	return err
}
