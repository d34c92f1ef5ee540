package sorter

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// CommandConfig configures the external sort utility.
type CommandConfig struct {
	// Path of the sort binary; "sort" when empty.
	Path string
	// BufferSize is passed as -S (e.g. "1G"); empty keeps the utility default.
	BufferSize string
	// TempDir is passed as -T when set.
	TempDir string
	// Parallel is passed as --parallel when positive (GNU sort).
	Parallel int
	// Compress passes --compress-program when set (e.g. "gzip").
	Compress string
}

// Command groups records with the operating system sort utility, run as
// `sort -z [-u]` with LC_ALL=C.
type Command struct {
	config CommandConfig
	logger logrus.FieldLogger
}

// NewCommand returns a grouper spawning one sort process per session.
func NewCommand(config CommandConfig, logger logrus.FieldLogger) *Command {
	if config.Path == "" {
		config.Path = "sort"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Command{config: config, logger: logger}
}

// Available reports whether the sort binary can be found.
func (c *Command) Available() bool {
	_, err := exec.LookPath(c.config.Path)
	return err == nil
}

// Config returns the configuration of c, defaults included.
func (c *Command) Config() CommandConfig { return c.config }

func (c *Command) args(dedup bool) []string {
	args := []string{"-z"}
	if dedup {
		args = append(args, "-u")
	}
	if c.config.BufferSize != "" {
		args = append(args, "-S", c.config.BufferSize)
	}
	if c.config.TempDir != "" {
		args = append(args, "-T", c.config.TempDir)
	}
	if c.config.Parallel > 0 {
		args = append(args, "--parallel="+strconv.Itoa(c.config.Parallel))
	}
	if c.config.Compress != "" {
		args = append(args, "--compress-program="+c.config.Compress)
	}
	return args
}

// Open spawns the sort process.
func (c *Command) Open(dedup bool) (Session, error) {
	cmd := exec.Command(c.config.Path, c.args(dedup)...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "sort stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "sort stdout")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "sort stderr")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "start %s", c.config.Path)
	}

	shards := make([]*shard, 2*numCPU())
	for i := range shards {
		shards[i] = &shard{buf: make([]byte, 0, chunkSize+1024)}
	}
	s := &commandSession{
		cmd:        cmd,
		stdin:      stdin,
		stdout:     stdout,
		logger:     c.logger.WithField("action", "sort"),
		shards:     shards,
		chunks:     make(chan []byte, len(shards)),
		writerDone: make(chan struct{}),
		stderrDone: make(chan struct{}),
	}
	go s.write()
	go s.logStderr(stderr)
	s.logger.WithField("args", cmd.Args).Debug("sort process started")
	return s, nil
}

type shard struct {
	sync.Mutex
	buf []byte
}

type commandSession struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	logger logrus.FieldLogger

	// mu is held shared by Emit and exclusively while the input is ended.
	mu      sync.RWMutex
	ended   bool
	shards  []*shard
	counter atomic.Uint32
	chunks  chan []byte

	writerDone chan struct{}
	writeErr   error
	failed     atomic.Bool

	stderrDone chan struct{}

	waitOnce sync.Once
	waitErr  error
	closed   atomic.Bool
}

func (s *commandSession) Emit(record []byte) error {
	if s.failed.Load() {
		return errors.New("sort: input pipe failed")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ended {
		return errors.New("sort: emit after end of input")
	}

	sh := s.shards[s.counter.Add(1)%uint32(len(s.shards))]
	sh.Lock()
	sh.buf = append(sh.buf, record...)
	sh.buf = append(sh.buf, 0)
	var full []byte
	if len(sh.buf) >= chunkSize {
		full = sh.buf
		sh.buf = make([]byte, 0, chunkSize+1024)
	}
	sh.Unlock()

	if full != nil {
		s.chunks <- full
	}
	return nil
}

// write copies chunks to the process input. After a failure it keeps
// receiving so that producers never block forever.
func (s *commandSession) write() {
	defer close(s.writerDone)
	for chunk := range s.chunks {
		if s.writeErr != nil {
			continue
		}
		if _, err := s.stdin.Write(chunk); err != nil {
			s.writeErr = errors.Wrap(err, "write to sort")
			s.failed.Store(true)
		}
	}
	if err := s.stdin.Close(); err != nil && s.writeErr == nil {
		s.writeErr = errors.Wrap(err, "close sort input")
	}
}

func (s *commandSession) logStderr(r io.Reader) {
	defer close(s.stderrDone)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		s.logger.WithField("stream", "stderr").Error(scanner.Text())
	}
}

// endInput flushes every shard and closes the chunk channel once.
func (s *commandSession) endInput() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	for _, sh := range s.shards {
		sh.Lock()
		if len(sh.buf) > 0 {
			s.chunks <- sh.buf
			sh.buf = nil
		}
		sh.Unlock()
	}
	close(s.chunks)
}

func (s *commandSession) wait() error {
	s.waitOnce.Do(func() {
		<-s.stderrDone
		if err := s.cmd.Wait(); err != nil && !s.closed.Load() {
			s.waitErr = errors.Wrap(err, "sort process")
		}
	})
	return s.waitErr
}

func (s *commandSession) Drain(decoders int, consume func(record []byte) error) error {
	return s.DrainTo(decoders, func() Consumer { return ConsumerFunc(consume) })
}

func (s *commandSession) DrainTo(decoders int, newConsumer func() Consumer) error {
	s.endInput()
	<-s.writerDone
	if s.writeErr != nil {
		_, _ = io.Copy(io.Discard, s.stdout)
		if err := s.wait(); err != nil {
			return errors.Wrap(err, s.writeErr.Error())
		}
		return s.writeErr
	}

	var err error
	if decoders <= 1 {
		err = s.readSequential(newConsumer())
	} else {
		err = s.readParallel(decoders, newConsumer)
	}
	if err != nil {
		return err
	}
	return s.wait()
}

func (s *commandSession) readSequential(consumer Consumer) error {
	reader := bufio.NewReaderSize(s.stdout, chunkSize)
	var pending []byte
	for {
		line, err := reader.ReadSlice(0)
		switch {
		case err == bufio.ErrBufferFull:
			pending = append(pending, line...)
			continue
		case err == io.EOF:
			if len(line) > 0 || len(pending) > 0 {
				return errors.New("sort: truncated output record")
			}
			return consumer.Flush()
		case err != nil:
			return errors.Wrap(err, "read from sort")
		}
		record := line[:len(line)-1]
		if pending != nil {
			pending = append(pending, record...)
			record, pending = pending, nil
		}
		if err := consumer.Consume(record); err != nil {
			return err
		}
	}
}

// readParallel cuts the sorted output into chunks ending at record
// boundaries and hands them to the decoders in order of arrival. Records of
// one key can end up in two consecutive chunks.
func (s *commandSession) readParallel(decoders int, newConsumer func() Consumer) error {
	g, ctx := errgroup.WithContext(context.Background())
	work := make(chan []byte, decoders)

	g.Go(func() error {
		defer close(work)
		reader := bufio.NewReaderSize(s.stdout, chunkSize)
		chunk := make([]byte, 0, chunkSize+1024)
		for {
			line, err := reader.ReadSlice(0)
			chunk = append(chunk, line...)
			if err == bufio.ErrBufferFull {
				continue
			}
			if err != nil && err != io.EOF {
				return errors.Wrap(err, "read from sort")
			}
			if err == io.EOF && len(chunk) > 0 && chunk[len(chunk)-1] != 0 {
				return errors.New("sort: truncated output record")
			}
			if len(chunk) >= chunkSize || (err == io.EOF && len(chunk) > 0) {
				select {
				case work <- chunk:
				case <-ctx.Done():
					return nil
				}
				chunk = make([]byte, 0, chunkSize+1024)
			}
			if err == io.EOF {
				return nil
			}
		}
	})

	for i := 0; i < decoders; i++ {
		consumer := newConsumer()
		g.Go(func() error {
			for chunk := range work {
				if ctx.Err() != nil {
					continue
				}
				for start := 0; start < len(chunk); {
					end := start
					for chunk[end] != 0 {
						end++
					}
					if err := consumer.Consume(chunk[start:end]); err != nil {
						return err
					}
					start = end + 1
				}
			}
			if ctx.Err() != nil {
				return nil
			}
			return consumer.Flush()
		})
	}
	return g.Wait()
}

func (s *commandSession) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.endInput()
	<-s.writerDone
	if s.cmd.ProcessState == nil {
		_ = s.cmd.Process.Kill()
	}
	_, _ = io.Copy(io.Discard, s.stdout)
	return s.wait()
}
