package pipeline

import (
	"context"
)

// Processor is a pipeline stage. Wrap returns the handler receiving the
// stage input, which writes the stage output to next. A stage needing K
// extra passes consumes the first K passes of every run internally and
// forwards Start/End to next only for the remaining ones.
type Processor interface {
	Wrap(next Handler) Handler
	ExtraPasses() int
}

type identity struct{}

func (identity) Wrap(next Handler) Handler { return next }
func (identity) ExtraPasses() int          { return 0 }

// Identity forwards its input unchanged.
var Identity Processor = identity{}

type funcProcessor struct {
	extra int
	wrap  func(Handler) Handler
}

func (p funcProcessor) Wrap(next Handler) Handler { return p.wrap(next) }
func (p funcProcessor) ExtraPasses() int          { return p.extra }

// NewProcessor builds a Processor from a wrap function.
func NewProcessor(extraPasses int, wrap func(next Handler) Handler) Processor {
	return funcProcessor{extra: extraPasses, wrap: wrap}
}

type sequence struct {
	stages []Processor
	extra  int
}

// Sequence chains stages: the output of each stage is the input of the
// following one. The last stage wraps the sink innermost, and the extra
// passes of all stages add up.
func Sequence(stages ...Processor) Processor {
	var flat []Processor
	for _, stage := range stages {
		if nested, ok := stage.(*sequence); ok {
			flat = append(flat, nested.stages...)
		} else if stage != Identity {
			flat = append(flat, stage)
		}
	}
	switch len(flat) {
	case 0:
		return Identity
	case 1:
		return flat[0]
	}
	s := &sequence{stages: flat}
	for _, stage := range flat {
		s.extra += stage.ExtraPasses()
	}
	return s
}

func (s *sequence) Wrap(next Handler) Handler {
	for i := len(s.stages) - 1; i >= 0; i-- {
		next = s.stages[i].Wrap(next)
	}
	return next
}

func (s *sequence) ExtraPasses() int { return s.extra }

// Apply runs proc over src, delivering passes full passes of output to sink.
// The source performs passes+proc.ExtraPasses() passes and closes the
// handler chain once, whether or not the run succeeds.
func Apply(ctx context.Context, src Source, proc Processor, sink Handler, passes int) error {
	if passes < 1 {
		_ = sink.Close()
		return Configf("apply", "passes must be positive, got %d", passes)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return src.Emit(ctx, proc.Wrap(sink), passes+proc.ExtraPasses())
}
