package pronunciation

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/sonido-pronounce/algorithms/stats"
	"github.com/RyanBlaney/sonido-pronounce/logging"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// Evaluator scores a user recording against reference templates. It holds
// no per-call state and is safe for concurrent use.
type Evaluator struct {
	cfg          *config.Config
	preprocessor *Preprocessor
	segmenter    *Segmenter
	extractor    *FeatureExtractor
	aligner      *Aligner
	feedback     *FeedbackClassifier
	matcher      *Matcher
	logger       logging.Logger
}

// NewEvaluator creates an evaluator. A nil config selects DefaultConfig.
func NewEvaluator(cfg *config.Config, logger logging.Logger) (*Evaluator, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	aligner, err := NewAligner(cfg.Alignment)
	if err != nil {
		return nil, fmt.Errorf("failed to create aligner: %w", err)
	}

	e := &Evaluator{
		cfg:          cfg,
		preprocessor: NewPreprocessor(cfg.Preprocess, cfg.Resample, logger),
		segmenter:    NewSegmenter(cfg.Segmenter, cfg.Preprocess),
		extractor:    NewFeatureExtractor(cfg.Features),
		aligner:      aligner,
		feedback:     NewFeedbackClassifier(cfg.Feedback),
		logger:       logger.WithFields(logging.Fields{"component": "evaluator"}),
	}
	e.matcher = NewMatcher(e.preprocessor, e.segmenter, e.extractor, e.aligner, e.feedback, cfg.MaxParallel, logger)

	return e, nil
}

// Config returns the configuration in use
func (e *Evaluator) Config() *config.Config {
	return e.cfg
}

// Feedback returns the classifier used for bands and notes
func (e *Evaluator) Feedback() *FeedbackClassifier {
	return e.feedback
}

// NewTemplate preprocesses a raw reference recording and precomputes its
// features and segments
func (e *Evaluator) NewTemplate(info TemplateInfo, raw AudioSignal) (*Template, error) {
	sig, err := e.preprocessor.Process(raw)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", info.ID, err)
	}

	rec, err := e.matcher.analyze(sig, true)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", info.ID, err)
	}

	return &Template{
		TemplateInfo:    info,
		Signal:          rec.signal,
		Features:        rec.features,
		Segments:        rec.segments,
		SegmentFeatures: rec.segmentFeatures,
	}, nil
}

// Evaluate scores signal against the ordered templates in the given mode.
// Input and template errors are reported before any alignment; the call
// fails with a Timeout error once ctx or the configured timeout expires.
func (e *Evaluator) Evaluate(ctx context.Context, signal AudioSignal, templates []*Template,
	mode Mode, lang language.Tag) (*ScoreResult, error) {
	requestID := uuid.New().String()
	lang = MatchLanguage(lang)

	ctx = logging.ContextWithFields(ctx, logging.Fields{
		"request_id": requestID,
		"mode":       string(mode),
	})
	logger := e.logger.WithContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return nil, NewError(KindTimeout, "evaluation not started", err)
	}

	mc, err := e.cfg.ModeConfig(string(mode))
	if err != nil {
		return nil, NewError(KindInput, "invalid mode", err)
	}
	strategy, err := stats.ParseStrategy(mc.Strategy)
	if err != nil {
		return nil, NewError(KindInternal, "invalid alignment strategy", err)
	}

	// Input problems are reported whatever templates were supplied
	sig, err := e.preprocessor.Process(signal)
	if err != nil {
		logger.Debug("Rejected recording", logging.Fields{"error": err.Error()})
		return nil, err
	}

	if len(templates) == 0 {
		return nil, NewError(KindNoTemplate, "no reference templates supplied", nil)
	}

	start := time.Now()
	logger.Debug("Starting evaluation", logging.Fields{
		"templates":   len(templates),
		"sample_rate": signal.SampleRate,
		"samples":     len(signal.Samples),
	})

	type outcome struct {
		result *ScoreResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := e.evaluate(ctx, sig, templates, mode, mc, strategy, lang)
		done <- outcome{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		logger.Warn("Evaluation timed out", logging.Fields{"elapsed_ms": time.Since(start).Milliseconds()})
		return nil, NewError(KindTimeout, "evaluation timed out", ctx.Err())
	case o := <-done:
		if o.err != nil {
			logger.Error(o.err, "Evaluation failed")
			return nil, o.err
		}

		o.result.Mode = mode
		o.result.Language = lang.String()
		o.result.RequestID = requestID

		logger.Info("Evaluation complete", logging.Fields{
			"score":      o.result.Score,
			"band":       o.result.Band.String(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
		return o.result, nil
	}
}

func (e *Evaluator) evaluate(ctx context.Context, sig AudioSignal, templates []*Template, mode Mode,
	mc config.ModeConfig, strategy stats.Strategy, lang language.Tag) (*ScoreResult, error) {
	user, err := e.matcher.analyze(sig, mode == ModePhrase)
	if err != nil {
		return nil, err
	}

	scorer := NewScoreMapper(mc.Calibration)
	if mode == ModePhrase {
		return e.matcher.MatchPhrase(ctx, user, templates, strategy, scorer, lang)
	}
	return e.matcher.MatchSingle(ctx, user, templates, strategy, scorer, lang)
}
