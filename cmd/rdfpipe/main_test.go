package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/rdfstream/internal/config"
	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rdf"
)

func ex(local string) rdf.IRI { return rdf.IRI{Value: "http://example.org/" + local} }

const input = `<http://example.org/a> <http://www.w3.org/2002/07/owl#sameAs> <http://example.org/bb> .
<http://example.org/a> <http://example.org/p> "1" .
<http://example.org/bb> <http://example.org/p> "2" .
<http://example.org/c> <http://example.org/p> "3" .
`

func setup(t *testing.T) (dir string, opts options) {
	t.Helper()
	t.Setenv("RDFSTREAM_GROUPER", config.GrouperMerge)
	t.Setenv("RDFSTREAM_TEMP_DIR", t.TempDir())
	dir = t.TempDir()
	in := filepath.Join(dir, "in.nq")
	require.NoError(t, os.WriteFile(in, []byte(input), 0o644))
	opts = options{Key: "s", Engine: "naive", Output: filepath.Join(dir, "out.nq")}
	opts.Args.Inputs = []string{in}
	return dir, opts
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	sort.Strings(lines)
	return lines
}

func TestRunSmushThenAggregate(t *testing.T) {
	_, opts := setup(t)
	opts.Stages = []string{"smush", "mapreduce"}
	opts.Aggregate = "s <http://example.org/count> n"

	logger, hook := logrustest.NewNullLogger()
	require.NoError(t, run(context.Background(), opts, logger))

	count := func(s string, n string) string {
		return rdf.NewQuad(ex(s), ex("count"), rdf.Literal{Lexical: n, Datatype: rdf.XSDLong}, nil).String()
	}
	assert.Equal(t, []string{count("a", "2"), count("c", "1")}, readLines(t, opts.Output))
	assert.Equal(t, "pipeline completed", hook.LastEntry().Message)
	assert.EqualValues(t, 2, hook.LastEntry().Data["statements"])
}

func TestRunRules(t *testing.T) {
	dir, opts := setup(t)
	ruleset := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(ruleset, []byte(`
prefixes:
  ex: http://example.org/
rules:
  - id: inverse
    body: ['?x ex:p ?v']
    head: ['?x ex:q ?v']
`), 0o644))
	opts.Stages = []string{"unique", "rules"}
	opts.Rules = ruleset
	opts.Dedup = true
	opts.Output = filepath.Join(dir, "out.nq.gz")

	logger, _ := logrustest.NewNullLogger()
	require.NoError(t, run(context.Background(), opts, logger))

	// the gzip output is read back through a file source
	buf := pipeline.NewBuffer()
	require.NoError(t, pipeline.NewFileSource([]string{opts.Output}).Emit(context.Background(), buf, 1))
	assert.Len(t, buf.Statements(), 7)
	assert.Contains(t, buf.Statements(), rdf.NewQuad(ex("c"), ex("q"), rdf.Literal{Lexical: "3"}, nil))
}

func TestBuildChainErrors(t *testing.T) {
	logger, _ := logrustest.NewNullLogger()
	cfg := config.Defaults()
	tests := map[string]options{
		"rules without ruleset": {Stages: []string{"rules"}, Engine: "naive"},
		"invalid key":           {Stages: []string{"mapreduce"}, Key: "sx"},
		"invalid aggregate":     {Stages: []string{"mapreduce"}, Key: "s", Aggregate: "s"},
		"unknown stage":         {Stages: []string{"sort"}},
	}
	for name, opts := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := buildChain(opts, cfg, logger, nil)
			require.Error(t, err)
			assert.True(t, pipeline.IsConfigurationError(err), "%v", err)
		})
	}
}

func TestRunRejectsBadLogLevel(t *testing.T) {
	_, opts := setup(t)
	opts.LogLevel = "chatty"
	logger, _ := logrustest.NewNullLogger()
	err := run(context.Background(), opts, logger)
	assert.True(t, pipeline.IsConfigurationError(err))
}
