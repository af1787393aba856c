package pronunciation

import (
	"testing"

	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"
)

func TestBandBoundaries(t *testing.T) {
	fc := NewFeedbackClassifier(config.DefaultConfig().Feedback)

	tests := []struct {
		score float64
		want  Band
	}{
		{100, BandExcellent},
		{90, BandExcellent},
		{89.99, BandGood},
		{75, BandGood},
		{74.99, BandAverage},
		{50, BandAverage},
		{49.99, BandTryAgain},
		{0, BandTryAgain},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, fc.Band(tt.score), "score %.2f", tt.score)
	}
}

func TestClassifyLocalizes(t *testing.T) {
	fc := NewFeedbackClassifier(config.DefaultConfig().Feedback)

	band, msg := fc.Classify(80, language.Russian)
	assert.Equal(t, BandGood, band)
	assert.Equal(t, "Хорошо, но можно улучшить.", msg)

	_, msg = fc.Classify(10, language.MustParse("en-GB"))
	assert.Equal(t, "Try again. Focus on the sounds.", msg)
}

func TestMatchLanguage(t *testing.T) {
	assert.Equal(t, language.English, MatchLanguage(language.English))
	assert.Equal(t, language.Russian, MatchLanguage(language.MustParse("ru-RU")))
	assert.Equal(t, language.English, MatchLanguage(language.Japanese))
	assert.Equal(t, language.English, MatchLanguage(language.Und))
}

func TestLocalizeUnknownKey(t *testing.T) {
	assert.Equal(t, "missing.key", Localize(MessageKey("missing.key"), language.English))
}

func TestSegmentNotesUseThreshold(t *testing.T) {
	fc := NewFeedbackClassifier(config.DefaultConfig().Feedback)

	notes := fc.SegmentNotes([]SegmentScore{
		{Label: "Bism", Distance: 50},
		{Label: "Allah", Distance: 50.01},
		{Label: "segment 3", Distance: 120},
	}, language.English)

	assert.Equal(t, []string{
		"Check the part 'Allah' (distance: 50.01)",
		"Check the part 'segment 3' (distance: 120.00)",
	}, notes)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "No sound detected or the voice is too quiet.", ErrorMessage(KindInput, language.English))
	assert.Equal(t, "Ошибка при анализе.", ErrorMessage(KindTimeout, language.Russian))
	assert.Equal(t, "An error occurred during analysis.", ErrorMessage(KindMismatch, language.English))
}

func TestBandMarshalText(t *testing.T) {
	text, err := BandTryAgain.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "try_again", string(text))
}
