package pronunciation

import (
	"errors"

	"golang.org/x/text/language"
)

// Response is the caller-facing outcome of an evaluation. Score is null when
// no score could be produced, except for input errors in single-item mode,
// which report 0.
type Response struct {
	Score      *float64       `json:"score"`
	Feedback   string         `json:"feedback"`
	Band       string         `json:"band,omitempty"`
	PerSegment []SegmentScore `json:"perSegment,omitempty"`
	Notes      []string       `json:"notes,omitempty"`
	Error      *ResponseError `json:"error,omitempty"`
}

// ResponseError describes a failed evaluation
type ResponseError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewResponse shapes an evaluation result, or its error, for the caller
func NewResponse(mode Mode, lang language.Tag, result *ScoreResult, err error) Response {
	if err == nil && result == nil {
		err = NewError(KindInternal, "no result", nil)
	}

	if err != nil {
		kind, ok := KindOf(err)
		if !ok {
			kind = KindInternal
		}

		resp := Response{
			Feedback: ErrorMessage(kind, lang),
			Error: &ResponseError{
				Kind:    kind.String(),
				Message: err.Error(),
			},
		}
		if kind == KindInput && mode == ModeSingleItem {
			zero := 0.0
			resp.Score = &zero
		}
		return resp
	}

	score := result.Score
	return Response{
		Score:      &score,
		Feedback:   result.Feedback,
		Band:       result.Band.String(),
		PerSegment: result.PerSegment,
		Notes:      result.Notes,
	}
}

// IsInputError reports whether err was caused by the user recording
func IsInputError(err error) bool {
	return errors.Is(err, ErrInput)
}
