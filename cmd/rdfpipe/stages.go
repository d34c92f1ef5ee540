package main

import (
	"github.com/sirupsen/logrus"

	"github.com/geoknoesis/rdfstream/internal/config"
	"github.com/geoknoesis/rdfstream/internal/monitoring"
	"github.com/geoknoesis/rdfstream/mapreduce"
	"github.com/geoknoesis/rdfstream/pipeline"
	"github.com/geoknoesis/rdfstream/rules"
	"github.com/geoknoesis/rdfstream/smush"
	"github.com/geoknoesis/rdfstream/sorter"
)

// buildChain turns the --stage list into a processor sequence, with
// progress tracking on the input and the output.
func buildChain(opts options, cfg config.Config, logger logrus.FieldLogger, metrics *monitoring.Metrics) (pipeline.Processor, error) {
	var grouper sorter.Grouper
	sharedGrouper := func() sorter.Grouper {
		if grouper == nil {
			grouper = cfg.NewGrouper(logger)
		}
		return grouper
	}

	stages := []pipeline.Processor{track("input", opts, logger, metrics)}
	for _, name := range opts.Stages {
		var stage pipeline.Processor
		var err error
		switch name {
		case "smush":
			stage, err = smushStage(opts, cfg, logger, metrics)
		case "mapreduce":
			stage, err = mapReduceStage(opts, cfg, sharedGrouper(), logger, metrics)
		case "unique":
			stage = pipeline.Unique(sharedGrouper(), opts.MergeContexts)
		case "rules":
			stage, err = rulesStage(opts, logger)
		default:
			err = pipeline.Configf("rdfpipe", "unknown stage %q", name)
		}
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	stages = append(stages, track("output", opts, logger, metrics))
	return pipeline.Sequence(stages...), nil
}

func track(stage string, opts options, logger logrus.FieldLogger, metrics *monitoring.Metrics) pipeline.Processor {
	return pipeline.Track(pipeline.TrackerConfig{
		Stage:   stage,
		Every:   opts.Progress,
		Logger:  logger,
		Metrics: metrics,
	})
}

func smushStage(opts options, cfg config.Config, logger logrus.FieldLogger, metrics *monitoring.Metrics) (pipeline.Processor, error) {
	smushOpts := []smush.Option{
		smush.WithRankedNamespaces(cfg.Smush.RankedNamespaces...),
		smush.WithMap(cfg.Smush.Map),
		smush.WithEmitSameAs(cfg.Smush.EmitSameAs),
		smush.WithDedupSize(cfg.Smush.DedupSize),
		smush.WithLogger(logger),
		smush.WithMetrics(metrics),
	}
	if len(opts.SameAs) > 0 {
		src := pipeline.NewFileSource(opts.SameAs, sourceOptions(opts, logger)...)
		smushOpts = append(smushOpts, smush.WithSameAsSource(src))
	}
	proc, err := smush.New(smushOpts...)
	if err != nil {
		return nil, err
	}
	return proc, nil
}

func mapReduceStage(opts options, cfg config.Config, grouper sorter.Grouper, logger logrus.FieldLogger, metrics *monitoring.Metrics) (pipeline.Processor, error) {
	mapper, err := mapreduce.Select(opts.Key)
	if err != nil {
		return nil, err
	}
	reducer := mapreduce.Identity
	if opts.Aggregate != "" {
		if reducer, err = mapreduce.Aggregate(opts.Aggregate); err != nil {
			return nil, err
		}
	}
	return mapreduce.New(mapper, reducer,
		mapreduce.WithGrouper(grouper),
		mapreduce.WithLogger(logger),
		mapreduce.WithMetrics(metrics),
		mapreduce.WithMinBatch(cfg.MinBatch),
		mapreduce.WithPermitsPerCore(cfg.PermitsPerCore),
		mapreduce.WithDecoders(cfg.Decoders),
	), nil
}

func rulesStage(opts options, logger logrus.FieldLogger) (pipeline.Processor, error) {
	if opts.Rules == "" {
		return nil, pipeline.Configf("rdfpipe", "the rules stage needs --rules")
	}
	rs, err := rules.LoadRulesetFile(opts.Rules)
	if err != nil {
		return nil, err
	}
	engine, err := rules.NewEngine(opts.Engine, rs, logger)
	if err != nil {
		return nil, err
	}
	return rules.NewProcessor(engine, opts.Dedup), nil
}
