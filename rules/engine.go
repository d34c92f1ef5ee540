package rules

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/geoknoesis/rdfstream/pipeline"
)

// Engine evaluates a ruleset over a stream. Eval returns a handler receiving
// the input; at the end of every pass the input closed under the rules is
// written to sink. With deduplicate set the output has no duplicates.
type Engine interface {
	Eval(sink pipeline.Handler, deduplicate bool) pipeline.Handler
}

// Factory builds an engine for a ruleset.
type Factory func(rs *Ruleset, logger logrus.FieldLogger) (Engine, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an engine available under name, replacing any previous
// registration.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Engines lists the registered engine names.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewEngine builds the engine registered under name. A nil logger selects
// the standard logger.
func NewEngine(name string, rs *Ruleset, logger logrus.FieldLogger) (Engine, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, pipeline.Configf("rules", "unknown engine %q, expected one of %v", name, Engines())
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return factory(rs, logger)
}

// NewProcessor returns a stage evaluating engine over its input.
func NewProcessor(engine Engine, deduplicate bool) pipeline.Processor {
	return pipeline.NewProcessor(0, func(next pipeline.Handler) pipeline.Handler {
		return engine.Eval(next, deduplicate)
	})
}
