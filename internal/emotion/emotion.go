package emotion

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnknownLabel is returned for a label outside the fixed label set
	ErrUnknownLabel = errors.New("unknown emotion label")
	// ErrConfidenceRange is returned for a confidence outside [0,1]
	ErrConfidenceRange = errors.New("confidence must be within [0,1]")
)

// Label is one of the seven expressions reported by the face classifier
type Label string

const (
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Neutral   Label = "neutral"
	Fearful   Label = "fearful"
	Surprised Label = "surprised"
	Disgusted Label = "disgusted"

	// None marks the absence of a label, e.g. the dominant label of an empty summary
	None Label = ""
)

// labels is the canonical order. Ties in counts or scores go to the earlier label.
var labels = [...]Label{Happy, Sad, Angry, Neutral, Fearful, Surprised, Disgusted}

// Labels returns all labels in canonical order
func Labels() []Label {
	out := make([]Label, len(labels))
	copy(out, labels[:])
	return out
}

// Index returns the canonical position of l, or -1 for an unknown label
func (l Label) Index() int {
	for i, c := range labels {
		if c == l {
			return i
		}
	}
	return -1
}

// Valid reports whether l belongs to the label set
func (l Label) Valid() bool {
	return l.Index() >= 0
}

func (l Label) String() string {
	return string(l)
}

// ParseLabel parses a label name. Matching is exact after trimming whitespace.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.TrimSpace(s))
	if !l.Valid() {
		return None, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
	}
	return l, nil
}

// ParseLabels parses a comma-joined list and silently drops unknown entries
func ParseLabels(s string) []Label {
	var out []Label
	for _, part := range strings.Split(s, ",") {
		if l, err := ParseLabel(part); err == nil {
			out = append(out, l)
		}
	}
	return out
}

// Sample is one timestamped classification event
type Sample struct {
	ID         string  `json:"id"`
	Label      Label   `json:"emotion"`
	Confidence float64 `json:"confidence"`
	Timestamp  int64   `json:"timestamp"` // epoch milliseconds
}

// NewSample validates its input and mints a sample with a fresh id
func NewSample(label Label, confidence float64, timestamp int64) (Sample, error) {
	s := Sample{
		ID:         uuid.NewString(),
		Label:      label,
		Confidence: confidence,
		Timestamp:  timestamp,
	}
	if err := s.Validate(); err != nil {
		return Sample{}, err
	}
	return s, nil
}

// Validate checks label and confidence. The id is not inspected.
func (s Sample) Validate() error {
	if !s.Label.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLabel, string(s.Label))
	}
	return ValidateConfidence(s.Confidence)
}

// Equal compares samples by identity
func (s Sample) Equal(other Sample) bool {
	return s.ID == other.ID
}

// ValidateConfidence rejects NaN and values outside [0,1]
func ValidateConfidence(c float64) error {
	if math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("%w: %v", ErrConfidenceRange, c)
	}
	return nil
}
