package hotspot

import (
	"errors"
	"fmt"
)

// InputError reports malformed or empty input to a pipeline stage.
type InputError struct {
	Stage string // fit, sample, score, extract, analyze
	Msg   string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("hotspot %s: %s", e.Stage, e.Msg)
}

func inputErrorf(stage, format string, args ...any) error {
	return &InputError{Stage: stage, Msg: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err (or anything it wraps) is an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// ErrDegenerateHull is the reason attached to warnings for clusters whose
// members do not span a polygon.
var ErrDegenerateHull = errors.New("convex hull is degenerate")

// ExtractionWarning describes a cluster that was skipped during extraction.
// It never fails an extraction; it is collected in Extraction.Warnings.
type ExtractionWarning struct {
	ClusterLabel int
	Members      int
	Reason       error
}

func (w ExtractionWarning) Error() string {
	return fmt.Sprintf("cluster %d (%d members) skipped: %v", w.ClusterLabel, w.Members, w.Reason)
}

func (w ExtractionWarning) Unwrap() error { return w.Reason }
