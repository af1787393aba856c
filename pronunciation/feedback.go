package pronunciation

import (
	"fmt"

	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
	"golang.org/x/text/language"
)

// Band is a score bracket with its own feedback message
type Band int

const (
	BandTryAgain Band = iota
	BandAverage
	BandGood
	BandExcellent
)

func (b Band) String() string {
	switch b {
	case BandExcellent:
		return "excellent"
	case BandGood:
		return "good"
	case BandAverage:
		return "average"
	default:
		return "try_again"
	}
}

// MarshalText encodes the band by name
func (b Band) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// MessageKey identifies a localized message
type MessageKey string

const (
	MsgBandExcellent   MessageKey = "band.excellent"
	MsgBandGood        MessageKey = "band.good"
	MsgBandAverage     MessageKey = "band.average"
	MsgBandTryAgain    MessageKey = "band.try_again"
	MsgNoVoice         MessageKey = "error.input"
	MsgNoTemplate      MessageKey = "error.no_template"
	MsgAnalysisFailed  MessageKey = "error.internal"
	MsgSegmentNote     MessageKey = "note.segment"
	MsgLowSegmentCount MessageKey = "note.low_segment_count"
)

// SupportedLanguages lists the languages with a complete message set. The
// first entry is the fallback for unmatched tags.
var SupportedLanguages = []language.Tag{
	language.English,
	language.Russian,
}

var languageMatcher = language.NewMatcher(SupportedLanguages)

// messages maps (key, language) to text. Adding a language means adding a
// column here and a tag to SupportedLanguages.
var messages = map[MessageKey]map[language.Tag]string{
	MsgBandExcellent: {
		language.English: "Excellent pronunciation!",
		language.Russian: "Отличное произношение!",
	},
	MsgBandGood: {
		language.English: "Good, but could be improved.",
		language.Russian: "Хорошо, но можно улучшить.",
	},
	MsgBandAverage: {
		language.English: "Average. Try to pronounce more clearly.",
		language.Russian: "Средне. Попробуйте произнести чётче.",
	},
	MsgBandTryAgain: {
		language.English: "Try again. Focus on the sounds.",
		language.Russian: "Попробуйте ещё раз. Обратите внимание на звуки.",
	},
	MsgNoVoice: {
		language.English: "No sound detected or the voice is too quiet.",
		language.Russian: "Нет звука или голос слишком тихий.",
	},
	MsgNoTemplate: {
		language.English: "No reference recordings found.",
		language.Russian: "Эталонные записи не найдены.",
	},
	MsgAnalysisFailed: {
		language.English: "An error occurred during analysis.",
		language.Russian: "Ошибка при анализе.",
	},
	MsgSegmentNote: {
		language.English: "Check the part '%s' (distance: %.2f)",
		language.Russian: "Проверьте часть '%s' (расстояние: %.2f)",
	},
	MsgLowSegmentCount: {
		language.English: "Too few segments detected. The phrase may be incomplete.",
		language.Russian: "Недостаточно сегментов. Возможно, фраза неполная.",
	},
}

// MatchLanguage returns the supported language closest to tag, falling back
// to English
func MatchLanguage(tag language.Tag) language.Tag {
	_, index, confidence := languageMatcher.Match(tag)
	if confidence == language.No {
		return SupportedLanguages[0]
	}
	return SupportedLanguages[index]
}

// Localize renders a message in the closest supported language
func Localize(key MessageKey, lang language.Tag, args ...any) string {
	table, ok := messages[key]
	if !ok {
		return string(key)
	}

	text, ok := table[MatchLanguage(lang)]
	if !ok {
		text = table[SupportedLanguages[0]]
	}

	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

// ErrorMessage returns the user-facing text for an error kind
func ErrorMessage(kind ErrorKind, lang language.Tag) string {
	switch kind {
	case KindInput:
		return Localize(MsgNoVoice, lang)
	case KindNoTemplate:
		return Localize(MsgNoTemplate, lang)
	default:
		return Localize(MsgAnalysisFailed, lang)
	}
}

// FeedbackClassifier maps scores to bands and segment distances to notes
type FeedbackClassifier struct {
	cfg config.FeedbackConfig
}

// NewFeedbackClassifier creates a classifier with the given cutoffs
func NewFeedbackClassifier(cfg config.FeedbackConfig) *FeedbackClassifier {
	return &FeedbackClassifier{cfg: cfg}
}

// Band returns the bracket a score falls into. Lower bounds are inclusive.
func (fc *FeedbackClassifier) Band(score float64) Band {
	switch {
	case score >= fc.cfg.ExcellentMin:
		return BandExcellent
	case score >= fc.cfg.GoodMin:
		return BandGood
	case score >= fc.cfg.AverageMin:
		return BandAverage
	default:
		return BandTryAgain
	}
}

// BandMessage returns the localized message of a band
func (fc *FeedbackClassifier) BandMessage(band Band, lang language.Tag) string {
	switch band {
	case BandExcellent:
		return Localize(MsgBandExcellent, lang)
	case BandGood:
		return Localize(MsgBandGood, lang)
	case BandAverage:
		return Localize(MsgBandAverage, lang)
	default:
		return Localize(MsgBandTryAgain, lang)
	}
}

// Classify returns the band of score and its message
func (fc *FeedbackClassifier) Classify(score float64, lang language.Tag) (Band, string) {
	band := fc.Band(score)
	return band, fc.BandMessage(band, lang)
}

// SegmentNotes returns a targeted note for every segment whose distance
// exceeds the threshold, independent of the overall band
func (fc *FeedbackClassifier) SegmentNotes(segments []SegmentScore, lang language.Tag) []string {
	var notes []string
	for _, s := range segments {
		if s.Distance > fc.cfg.SegmentDistanceThreshold {
			notes = append(notes, Localize(MsgSegmentNote, lang, s.Label, s.Distance))
		}
	}
	return notes
}
