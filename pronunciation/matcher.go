package pronunciation

import (
	"context"
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-pronounce/algorithms/common"
	"github.com/RyanBlaney/sonido-pronounce/algorithms/stats"
	"github.com/RyanBlaney/sonido-pronounce/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

// recording is a preprocessed signal with the features derived from it
type recording struct {
	signal          AudioSignal
	features        FeatureMatrix
	segments        []Segment
	segmentFeatures []FeatureMatrix
}

func templateRecording(t *Template) *recording {
	return &recording{
		signal:          t.Signal,
		features:        t.Features,
		segments:        t.Segments,
		segmentFeatures: t.SegmentFeatures,
	}
}

// templateOutcome is the comparison of the user recording with one template
type templateOutcome struct {
	score            TemplateScore
	segmentDistances []float64
	err              error
}

func (o templateOutcome) ok() bool { return o.err == nil }

// Matcher compares a user recording with reference templates
type Matcher struct {
	preprocessor *Preprocessor
	segmenter    *Segmenter
	extractor    *FeatureExtractor
	aligner      *Aligner
	feedback     *FeedbackClassifier
	maxParallel  int
	logger       logging.Logger
}

// NewMatcher creates a matcher from its collaborators
func NewMatcher(pre *Preprocessor, seg *Segmenter, fx *FeatureExtractor, aligner *Aligner,
	feedback *FeedbackClassifier, maxParallel int, logger logging.Logger) *Matcher {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	return &Matcher{
		preprocessor: pre,
		segmenter:    seg,
		extractor:    fx,
		aligner:      aligner,
		feedback:     feedback,
		maxParallel:  max(maxParallel, 1),
		logger:       logger.WithFields(logging.Fields{"component": "matcher"}),
	}
}

// analyze derives features, and optionally segments, from a preprocessed signal
func (m *Matcher) analyze(sig AudioSignal, withSegments bool) (*recording, error) {
	features, err := m.extractor.Extract(sig.Samples, sig.SampleRate)
	if err != nil {
		return nil, err
	}

	rec := &recording{signal: sig, features: features}
	if !withSegments {
		return rec, nil
	}

	rec.segments = m.segmenter.Split(sig)
	rec.segmentFeatures = make([]FeatureMatrix, len(rec.segments))
	for i, s := range rec.segments {
		rec.segmentFeatures[i], err = m.extractor.Extract(sig.Samples[s.Start:s.End], sig.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i+1, err)
		}
	}
	return rec, nil
}

// forEachTemplate runs fn for every template with at most maxParallel in
// flight. Each call writes only its own slot, so output order is input order
// regardless of completion order.
func (m *Matcher) forEachTemplate(ctx context.Context, templates []*Template,
	fn func(t *Template) templateOutcome) []templateOutcome {
	outcomes := make([]templateOutcome, len(templates))

	var g errgroup.Group
	g.SetLimit(m.maxParallel)

	for i, t := range templates {
		g.Go(func() error {
			switch {
			case t == nil:
				outcomes[i] = templateOutcome{err: NewError(KindInternal, "nil template", nil)}
			case ctx.Err() != nil:
				outcomes[i] = templateOutcome{err: NewError(KindTimeout, "evaluation aborted", ctx.Err())}
			default:
				outcomes[i] = fn(t)
			}
			if err := outcomes[i].err; err != nil {
				outcomes[i].score.Error = err.Error()
				if t != nil {
					outcomes[i].score.TemplateID = t.ID
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// MatchSingle scores the user against the closest template. Only the best
// template's distance is converted to a score.
func (m *Matcher) MatchSingle(ctx context.Context, user *recording, templates []*Template,
	strategy stats.Strategy, scorer *ScoreMapper, lang language.Tag) (*ScoreResult, error) {
	outcomes := m.forEachTemplate(ctx, templates, func(t *Template) templateOutcome {
		u, r, err := m.reconcile(user, t, false, false)
		if err != nil {
			return templateOutcome{err: err}
		}

		result, err := m.aligner.Align(u.features, r.features, strategy)
		if err != nil {
			return templateOutcome{err: err}
		}

		return templateOutcome{score: TemplateScore{
			TemplateID: t.ID,
			Distance:   result.Distance,
			Score:      scorer.Score(result.Distance),
		}}
	})

	return m.aggregateSingle(outcomes, scorer, lang)
}

func (m *Matcher) aggregateSingle(outcomes []templateOutcome, scorer *ScoreMapper, lang language.Tag) (*ScoreResult, error) {
	best := -1
	for i, o := range outcomes {
		if !o.ok() {
			m.logger.Warn("Skipping template", logging.Fields{"template": o.score.TemplateID, "error": o.score.Error})
			continue
		}
		if best == -1 || o.score.Distance < outcomes[best].score.Distance {
			best = i
		}
	}
	if best == -1 {
		return nil, noUsableTemplate(outcomes)
	}

	score := scorer.Score(outcomes[best].score.Distance)
	band, message := m.feedback.Classify(score, lang)

	return &ScoreResult{
		Score:          score,
		Band:           band,
		Feedback:       message,
		TemplateScores: templateScores(outcomes),
	}, nil
}

// MatchPhrase scores the user against every template and averages the
// scores. Feedback follows the first template of the list.
func (m *Matcher) MatchPhrase(ctx context.Context, user *recording, templates []*Template,
	strategy stats.Strategy, scorer *ScoreMapper, lang language.Tag) (*ScoreResult, error) {
	outcomes := m.forEachTemplate(ctx, templates, func(t *Template) templateOutcome {
		u, r, err := m.reconcile(user, t, true, true)
		if err != nil {
			return templateOutcome{err: err}
		}

		result, err := m.aligner.Align(u.features, r.features, strategy)
		if err != nil {
			return templateOutcome{err: err}
		}

		outcome := templateOutcome{score: TemplateScore{
			TemplateID:   t.ID,
			Distance:     result.Distance,
			Score:        scorer.Score(result.Distance),
			SegmentCount: len(r.segments),
		}}

		// Per-segment breakdown only when the segment counts agree
		if len(u.segments) > 0 && len(u.segments) == len(r.segments) {
			distances := make([]float64, len(u.segments))
			for i := range u.segments {
				seg, err := m.aligner.Align(u.segmentFeatures[i], r.segmentFeatures[i], strategy)
				if err != nil {
					m.logger.Warn("Segment alignment failed", logging.Fields{
						"template": t.ID, "segment": i + 1, "error": err.Error(),
					})
					return outcome
				}
				distances[i] = seg.Distance
			}
			outcome.score.SegmentEligible = true
			outcome.segmentDistances = distances
		}

		return outcome
	})

	return m.aggregatePhrase(templates, outcomes, len(user.segments), lang)
}

func (m *Matcher) aggregatePhrase(templates []*Template, outcomes []templateOutcome, userSegments int,
	lang language.Tag) (*ScoreResult, error) {
	var scores []float64
	source := -1
	bestSegments := -1
	bestTotal := math.Inf(1)

	for i, o := range outcomes {
		if !o.ok() {
			m.logger.Warn("Skipping template", logging.Fields{"template": o.score.TemplateID, "error": o.score.Error})
			continue
		}
		scores = append(scores, o.score.Score)
		if source == -1 {
			source = i
		}
		if o.score.SegmentEligible {
			total := 0.0
			for _, d := range o.segmentDistances {
				total += d
			}
			if total < bestTotal {
				bestTotal = total
				bestSegments = i
			}
		}
	}
	if source == -1 {
		return nil, noUsableTemplate(outcomes)
	}

	band, message := m.feedback.Classify(outcomes[source].score.Score, lang)
	result := &ScoreResult{
		Score:          MeanScore(scores),
		Band:           band,
		Feedback:       message,
		TemplateScores: templateScores(outcomes),
	}

	if bestSegments != -1 {
		t := templates[bestSegments]
		for i, d := range outcomes[bestSegments].segmentDistances {
			result.PerSegment = append(result.PerSegment, SegmentScore{
				Label:      t.SegmentLabel(i),
				Distance:   d,
				TemplateID: t.ID,
			})
		}
		// Thresholds apply to raw distances; rounding is for display only
		result.Notes = m.feedback.SegmentNotes(result.PerSegment, lang)
		for i := range result.PerSegment {
			result.PerSegment[i].Distance = common.RoundTo(result.PerSegment[i].Distance, 2)
		}
	}

	if expected := templates[source].ExpectedSegments(); userSegments < expected {
		result.LowSegmentCount = true
		result.Notes = append(result.Notes, Localize(MsgLowSegmentCount, lang))
	}

	return result, nil
}

// reconcile returns user and template views at a common sample rate. In
// phrase mode the template is truncated or zero-padded to the user's length.
// Precomputed features are reused whenever the signal is unchanged.
func (m *Matcher) reconcile(user *recording, t *Template, equalize, withSegments bool) (*recording, *recording, error) {
	if t.Signal.SampleRate <= 0 || len(t.Signal.Samples) == 0 {
		return nil, nil, NewError(KindInternal, fmt.Sprintf("template %s has no signal", t.ID), nil)
	}

	uSig, tSig, err := m.preprocessor.Reconcile(user.signal, t.Signal)
	if err != nil {
		return nil, nil, err
	}

	u := user
	if uSig.SampleRate != user.signal.SampleRate {
		if u, err = m.analyze(uSig, withSegments); err != nil {
			return nil, nil, err
		}
	}

	changed := tSig.SampleRate != t.Signal.SampleRate
	if equalize && len(tSig.Samples) != len(uSig.Samples) {
		tSig = AudioSignal{
			Samples:    common.FitLength(tSig.Samples, len(uSig.Samples)),
			SampleRate: tSig.SampleRate,
		}
		changed = true
	}

	r := templateRecording(t)
	if changed || r.features == nil || (withSegments && r.segmentFeatures == nil) {
		if r, err = m.analyze(tSig, withSegments); err != nil {
			return nil, nil, err
		}
	}

	return u, r, nil
}

func templateScores(outcomes []templateOutcome) []TemplateScore {
	scores := make([]TemplateScore, len(outcomes))
	for i, o := range outcomes {
		scores[i] = o.score
	}
	return scores
}

// noUsableTemplate reports a failure of every template, keeping the kind of
// the first failure
func noUsableTemplate(outcomes []templateOutcome) error {
	for _, o := range outcomes {
		if o.err == nil {
			continue
		}
		kind, ok := KindOf(o.err)
		if !ok {
			kind = KindInternal
		}
		return NewError(kind, fmt.Sprintf("no template yielded a score (%d failed)", len(outcomes)), o.err)
	}
	return NewError(KindNoTemplate, "no templates", nil)
}
