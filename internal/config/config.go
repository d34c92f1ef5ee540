// Package config holds the settings of an rdfpipe run. Values come from the
// defaults, then an optional YAML file, then RDFSTREAM_* environment
// variables.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/geoknoesis/rdfstream/mapreduce"
	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/smush"
	"github.com/geoknoesis/rdfstream/sorter"
)

// Grouper kinds.
const (
	GrouperAuto    = "auto"
	GrouperCommand = "command"
	GrouperMerge   = "merge"
)

// Config is the run configuration.
type Config struct {
	Grouper        string      `yaml:"grouper"`
	SortCommand    string      `yaml:"sort_command"`
	SortBuffer     string      `yaml:"sort_buffer"`
	SortParallel   int         `yaml:"sort_parallel"`
	SortCompress   string      `yaml:"sort_compress"`
	TempDir        string      `yaml:"temp_dir"`
	Decoders       int         `yaml:"decoders"`
	PermitsPerCore int         `yaml:"permits_per_core"`
	MinBatch       int         `yaml:"min_batch"`
	Smush          SmushConfig `yaml:"smush"`
	LogLevel       string      `yaml:"log_level"`
	MetricsAddr    string      `yaml:"metrics_addr"`
}

// SmushConfig configures the owl:sameAs smushing stage.
type SmushConfig struct {
	RankedNamespaces []string `yaml:"ranked_namespaces"`
	Map              string   `yaml:"map"`
	EmitSameAs       bool     `yaml:"emit_sameas"`
	DedupSize        int      `yaml:"dedup_size"`
}

// sortMemoryShare is the fraction of physical memory given to the sort
// utility by default.
const sortMemoryShare = 4

// Defaults returns the built-in configuration.
func Defaults() Config {
	c := Config{
		Grouper:        GrouperAuto,
		Decoders:       1,
		PermitsPerCore: mapreduce.DefaultPermitsPerCore,
		MinBatch:       mapreduce.DefaultMinBatch,
		Smush: SmushConfig{
			Map:       smush.MapOpen,
			DedupSize: smush.DefaultDedupSize,
		},
		LogLevel: logrus.InfoLevel.String(),
	}
	if total := memory.TotalMemory(); total > 0 {
		c.SortBuffer = fmt.Sprintf("%dM", total/sortMemoryShare>>20)
	}
	return c
}

// Load returns the defaults overridden by the YAML file at path, when path
// is not empty, and by the environment.
func Load(path string) (Config, error) {
	c := Defaults()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return c, &pipeline.ConfigurationError{Op: "config", Err: errors.Wrapf(err, "open %s", path)}
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
			return c, &pipeline.ConfigurationError{Op: "config", Err: errors.Wrapf(err, "decode %s", path)}
		}
	}
	if err := FromEnv(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

// FromEnv overrides c with the RDFSTREAM_* variables that are set.
func FromEnv(c *Config) error {
	strs := map[string]*string{
		"RDFSTREAM_GROUPER":       &c.Grouper,
		"RDFSTREAM_SORT_COMMAND":  &c.SortCommand,
		"RDFSTREAM_SORT_BUFFER":   &c.SortBuffer,
		"RDFSTREAM_SORT_COMPRESS": &c.SortCompress,
		"RDFSTREAM_TEMP_DIR":      &c.TempDir,
		"RDFSTREAM_SMUSH_MAP":     &c.Smush.Map,
		"RDFSTREAM_LOG_LEVEL":     &c.LogLevel,
		"RDFSTREAM_METRICS_ADDR":  &c.MetricsAddr,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"RDFSTREAM_SORT_PARALLEL":    &c.SortParallel,
		"RDFSTREAM_DECODERS":         &c.Decoders,
		"RDFSTREAM_PERMITS_PER_CORE": &c.PermitsPerCore,
		"RDFSTREAM_MIN_BATCH":        &c.MinBatch,
		"RDFSTREAM_SMUSH_DEDUP_SIZE": &c.Smush.DedupSize,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return pipeline.Configf("config", "%s: %v", name, err)
		}
		*dst = n
	}

	if v, ok := os.LookupEnv("RDFSTREAM_SMUSH_RANKED_NAMESPACES"); ok {
		c.Smush.RankedNamespaces = nil
		for _, ns := range strings.Split(v, ",") {
			if ns = strings.TrimSpace(ns); ns != "" {
				c.Smush.RankedNamespaces = append(c.Smush.RankedNamespaces, ns)
			}
		}
	}
	if v, ok := os.LookupEnv("RDFSTREAM_SMUSH_EMIT_SAMEAS"); ok {
		c.Smush.EmitSameAs = enabled(v)
	}
	return nil
}

func enabled(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "enabled", "1", "true", "yes":
		return true
	}
	return false
}

// Validate checks the values that the stages would otherwise reject late.
func (c Config) Validate() error {
	switch c.Grouper {
	case GrouperAuto, GrouperCommand, GrouperMerge:
	default:
		return pipeline.Configf("config", "unknown grouper %q, expected %s, %s or %s",
			c.Grouper, GrouperAuto, GrouperCommand, GrouperMerge)
	}
	if c.Decoders < 1 {
		return pipeline.Configf("config", "decoders must be positive, got %d", c.Decoders)
	}
	if c.PermitsPerCore < 1 {
		return pipeline.Configf("config", "permits_per_core must be positive, got %d", c.PermitsPerCore)
	}
	if c.MinBatch < 1 {
		return pipeline.Configf("config", "min_batch must be positive, got %d", c.MinBatch)
	}
	if c.SortParallel < 0 || c.Smush.DedupSize < 0 {
		return pipeline.Configf("config", "sizes must not be negative")
	}
	if _, err := smush.NewCodeMap(c.Smush.Map, 0); err != nil {
		return err
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &pipeline.ConfigurationError{Op: "config", Err: err}
	}
	return nil
}

// Level returns the parsed log level, info when invalid.
func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewGrouper builds the configured grouper. The auto kind falls back to
// the in-process merge sort when the sort utility is missing.
func (c Config) NewGrouper(logger logrus.FieldLogger) sorter.Grouper {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	merge := sorter.NewMerge(sorter.MergeConfig{TempDir: c.TempDir})
	if c.Grouper == GrouperMerge {
		return merge
	}
	cmd := sorter.NewCommand(sorter.CommandConfig{
		Path:       c.SortCommand,
		BufferSize: c.SortBuffer,
		TempDir:    c.TempDir,
		Parallel:   c.SortParallel,
		Compress:   c.SortCompress,
	}, logger)
	if c.Grouper == GrouperCommand || cmd.Available() {
		return cmd
	}
	logger.WithField("action", "sort").Warn("sort utility not found, using in-process merge sort")
	return merge
}
