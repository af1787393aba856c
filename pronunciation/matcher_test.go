package pronunciation

import (
	"errors"
	"testing"

	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func newAggregationMatcher() *Matcher {
	return NewMatcher(nil, nil, nil, nil, NewFeedbackClassifier(config.DefaultConfig().Feedback), 1, nil)
}

func scored(id string, score float64) templateOutcome {
	return templateOutcome{score: TemplateScore{TemplateID: id, Score: score}}
}

func failed(id string, kind ErrorKind) templateOutcome {
	err := NewError(kind, "failed", nil)
	return templateOutcome{score: TemplateScore{TemplateID: id, Error: err.Error()}, err: err}
}

func templatesFor(ids ...string) []*Template {
	out := make([]*Template, len(ids))
	for i, id := range ids {
		out[i] = &Template{TemplateInfo: TemplateInfo{ID: id}}
	}
	return out
}

func TestAggregatePhraseMean(t *testing.T) {
	m := newAggregationMatcher()

	result, err := m.aggregatePhrase(templatesFor("a", "b", "c"),
		[]templateOutcome{scored("a", 80), scored("b", 85), scored("c", 90)}, 0, language.English)
	require.NoError(t, err)
	assert.Equal(t, 85.0, result.Score)
	assert.Equal(t, BandGood, result.Band)
	assert.Empty(t, result.PerSegment)
	assert.False(t, result.LowSegmentCount)
}

func TestAggregatePhraseFeedbackFollowsFirstTemplate(t *testing.T) {
	m := newAggregationMatcher()

	result, err := m.aggregatePhrase(templatesFor("a", "b", "c"),
		[]templateOutcome{scored("a", 60), scored("b", 95), scored("c", 98)}, 0, language.English)
	require.NoError(t, err)
	assert.Equal(t, 84.33, result.Score)
	assert.Equal(t, BandAverage, result.Band)
	assert.Equal(t, "Average. Try to pronounce more clearly.", result.Feedback)

	result, err = m.aggregatePhrase(templatesFor("a", "b", "c"),
		[]templateOutcome{failed("a", KindInternal), scored("b", 95), scored("c", 60)}, 0, language.English)
	require.NoError(t, err)
	assert.Equal(t, 77.5, result.Score)
	assert.Equal(t, BandExcellent, result.Band)
}

func TestAggregatePhraseAllFailed(t *testing.T) {
	m := newAggregationMatcher()

	_, err := m.aggregatePhrase(templatesFor("a", "b"),
		[]templateOutcome{failed("a", KindMismatch), failed("b", KindInternal)}, 0, language.English)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))
}

func TestAggregatePhrasePicksLowestSegmentTotal(t *testing.T) {
	m := newAggregationMatcher()
	templates := templatesFor("a", "b", "c")
	templates[2].SegmentLabels = []string{"Bism", "Allah"}

	outcomes := []templateOutcome{scored("a", 70), scored("b", 80), scored("c", 90)}
	outcomes[1].score.SegmentEligible = true
	outcomes[1].segmentDistances = []float64{40, 40}
	outcomes[2].score.SegmentEligible = true
	outcomes[2].segmentDistances = []float64{10, 60.456}

	result, err := m.aggregatePhrase(templates, outcomes, 2, language.English)
	require.NoError(t, err)

	require.Len(t, result.PerSegment, 2)
	assert.Equal(t, SegmentScore{Label: "Bism", Distance: 10, TemplateID: "c"}, result.PerSegment[0])
	assert.Equal(t, SegmentScore{Label: "Allah", Distance: 60.46, TemplateID: "c"}, result.PerSegment[1])
	assert.Equal(t, []string{"Check the part 'Allah' (distance: 60.46)"}, result.Notes)
	assert.False(t, result.LowSegmentCount)
}

func TestAggregatePhraseNotesUseUnroundedDistance(t *testing.T) {
	m := newAggregationMatcher()
	templates := templatesFor("a")
	templates[0].SegmentLabels = []string{"Bism", "Allah"}

	outcomes := []templateOutcome{scored("a", 80)}
	outcomes[0].score.SegmentEligible = true
	outcomes[0].segmentDistances = []float64{50.004, 49.999}

	result, err := m.aggregatePhrase(templates, outcomes, 2, language.English)
	require.NoError(t, err)

	require.Len(t, result.PerSegment, 2)
	assert.Equal(t, 50.0, result.PerSegment[0].Distance)
	assert.Equal(t, 50.0, result.PerSegment[1].Distance)
	assert.Equal(t, []string{"Check the part 'Bism' (distance: 50.00)"}, result.Notes)
}

func TestAggregatePhraseLowSegmentCount(t *testing.T) {
	m := newAggregationMatcher()
	templates := templatesFor("a")
	templates[0].SegmentLabels = []string{"Bism", "Allah", "Rahman", "Rahim"}

	result, err := m.aggregatePhrase(templates, []templateOutcome{scored("a", 70)}, 2, language.Russian)
	require.NoError(t, err)
	assert.True(t, result.LowSegmentCount)
	assert.Equal(t, []string{"Недостаточно сегментов. Возможно, фраза неполная."}, result.Notes)
}

func TestAggregateSingleScoresMinimumDistance(t *testing.T) {
	m := newAggregationMatcher()
	scorer := NewScoreMapper(30000)

	outcomes := []templateOutcome{
		{score: TemplateScore{TemplateID: "a", Distance: 9000}},
		failed("b", KindInternal),
		{score: TemplateScore{TemplateID: "c", Distance: 3000}},
	}

	result, err := m.aggregateSingle(outcomes, scorer, language.English)
	require.NoError(t, err)
	assert.Equal(t, scorer.Score(3000), result.Score)
	assert.Equal(t, 90.48, result.Score)
	assert.Equal(t, BandExcellent, result.Band)
	assert.Len(t, result.TemplateScores, 3)

	_, err = m.aggregateSingle([]templateOutcome{failed("a", KindInput)}, scorer, language.English)
	assert.True(t, errors.Is(err, ErrInput))
}
