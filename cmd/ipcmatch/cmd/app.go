package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ipcmatch/internal/config"
	"ipcmatch/internal/convlog"
	"ipcmatch/internal/domain"
	"ipcmatch/internal/engine"
	"ipcmatch/internal/lexicon"
	"ipcmatch/internal/logging"
	"ipcmatch/internal/metrics"
	"ipcmatch/internal/service"
	"ipcmatch/internal/summarizer"
	"ipcmatch/internal/summarizer/gemini"
	"ipcmatch/internal/summarizer/openai"
)

// app is the wired process: config, logger, engine and service.
type app struct {
	cfg     *config.AppConfig
	logger  *zap.Logger
	tables  *lexicon.Tables
	holder  *engine.Holder
	metrics *metrics.Metrics
	svc     *service.Service
	closers []func() error
}

type appOptions struct {
	conversationLog bool
	summaries       bool
	metrics         bool
}

func loadConfig() (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if flagConfig == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(flagConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if flagCorpus != "" {
		cfg.Corpus.Path = flagCorpus
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, o appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() error { _ = logger.Sync(); return nil })
	if err := a.open(ctx, o); err != nil {
		return nil, err
	}
	return a, nil
}

// open wires everything after the logger. On failure whatever was already
// opened is closed again.
func (a *app) open(ctx context.Context, o appOptions) (err error) {
	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close())
		}
	}()
	cfg, logger := a.cfg, a.logger

	if cfg.Lexicon.SynonymsPath != "" {
		a.tables, err = lexicon.LoadFiles(cfg.Lexicon.SynonymsPath, cfg.Lexicon.PatternsPath)
	} else {
		a.tables, err = lexicon.Default()
	}
	if err != nil {
		return fmt.Errorf("load lexicon: %w", err)
	}

	e, err := a.build()
	if err != nil {
		return err
	}
	a.holder = engine.NewHolder(e)

	if o.metrics {
		a.metrics = metrics.New(true)
		a.metrics.SetSections(e.Status().TotalSections)
	}

	deps := service.Deps{
		Engine:         a.holder,
		Metrics:        a.metrics,
		Logger:         logger,
		SummaryTimeout: cfg.Summarizer.Timeout(),
	}
	if o.summaries {
		deps.Summarizer = newSummarizer(ctx, cfg.Summarizer, logger)
		if c, ok := deps.Summarizer.(interface{ Close() error }); ok {
			a.closers = append(a.closers, c.Close)
		}
	}
	if o.conversationLog && cfg.ConversationLog.Type == "bolt" {
		sink, err := convlog.Open(cfg.ConversationLog.Path)
		if err != nil {
			return err
		}
		deps.Sink = sink
		a.closers = append(a.closers, sink.Close)
	}
	a.svc, err = service.New(deps)
	return err
}

// build constructs an engine from the configured corpus.
func (a *app) build() (*engine.Engine, error) {
	start := time.Now()
	e, err := engine.BuildFromFile(a.cfg.Corpus.Path, a.tables, a.cfg.EngineOptions(), a.logger)
	if err != nil {
		return nil, err
	}
	st := e.Status()
	a.logger.Info("engine ready",
		zap.String("corpus", a.cfg.Corpus.Path),
		zap.Int("sections", st.TotalSections),
		zap.Int("vocabulary", st.Vocabulary),
		zap.Bool("vector_search", st.VectorSearch),
		zap.Duration("took", time.Since(start)))
	return e, nil
}

// Close releases resources in reverse order of acquisition. Calling it
// again is a no-op.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newSummarizer picks the configured summarizer. Remote summarizers that
// cannot be configured leave the service without summaries.
func newSummarizer(ctx context.Context, cfg config.SummarizerConfig, logger *zap.Logger) domain.Summarizer {
	switch cfg.Type {
	case "frequency":
		return summarizer.NewFrequencySummarizer(cfg.MaxSentences)
	case "gemini":
		gc := config.GeminiConfig{}
		if cfg.Gemini != nil {
			gc = *cfg.Gemini
		}
		s, err := gemini.New(ctx, gemini.Config{APIKeyEnv: gc.APIKeyEnv, Model: gc.Model, Timeout: cfg.Timeout()})
		if err != nil {
			logger.Warn("gemini summaries disabled", zap.Error(err))
			return summarizer.None{}
		}
		return s
	case "openai":
		oc := config.OpenAIConfig{}
		if cfg.OpenAI != nil {
			oc = *cfg.OpenAI
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Timeout:    cfg.Timeout(),
			MaxRetries: oc.MaxRetries,
		})
		if err != nil {
			logger.Warn("openai summaries disabled", zap.Error(err))
			return summarizer.None{}
		}
		return c
	default:
		return summarizer.None{}
	}
}
