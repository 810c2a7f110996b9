// frame_selector.go - Picks the most informative frame out of a burst

package processor

import (
	"context"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// MaxFrames caps how many burst frames are scored; the rest are dropped.
const MaxFrames = 5

// LogoWeight converts a logo confidence into text-length units.
const LogoWeight = 300.0

// TextDetector recognizes text in an image.
type TextDetector interface {
	DetectText(ctx context.Context, image []byte) (string, error)
}

// LogoDetector returns the confidence of the strongest logo in an image.
type LogoDetector interface {
	DetectLogo(ctx context.Context, image []byte) (float64, error)
}

// Selection is the outcome of scoring a burst.
type Selection struct {
	Frame  []byte
	Index  int
	Scores []float64
	// Text is the OCR text of the winning frame; TextKnown reports whether
	// text detection actually succeeded for it.
	Text      string
	TextKnown bool
}

// FrameSelector scores frames by len(text) + 300*logoConfidence.
type FrameSelector struct {
	text TextDetector
	logo LogoDetector
}

// NewFrameSelector accepts nil detectors; a missing detector scores 0.
func NewFrameSelector(text TextDetector, logo LogoDetector) *FrameSelector {
	return &FrameSelector{text: text, logo: logo}
}

type frameScore struct {
	text   string
	textOK bool
	logo   float64
}

// Select returns the highest scoring frame. Ties go to the lowest index and a
// burst where every detector failed resolves to the first frame.
func (s *FrameSelector) Select(ctx context.Context, frames [][]byte) Selection {
	if len(frames) == 0 {
		return Selection{Index: -1}
	}
	if len(frames) > MaxFrames {
		frames = frames[:MaxFrames]
	}
	if len(frames) == 1 || (s.text == nil && s.logo == nil) {
		return Selection{Frame: frames[0], Index: 0, Scores: make([]float64, len(frames))}
	}

	results := make([]frameScore, len(frames))
	var g errgroup.Group
	for i, original := range frames {
		i, frame := i, PrepareForDetection(original)
		if s.text != nil {
			g.Go(func() error {
				text, err := s.text.DetectText(ctx, frame)
				if err == nil {
					results[i].text = text
					results[i].textOK = true
				}
				return nil
			})
		}
		if s.logo != nil {
			g.Go(func() error {
				conf, err := s.logo.DetectLogo(ctx, frame)
				if err == nil {
					results[i].logo = conf
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	sel := Selection{Index: 0, Scores: make([]float64, len(frames))}
	best := -1.0
	for i, r := range results {
		score := FrameScore(r.text, r.logo)
		sel.Scores[i] = score
		if score > best {
			best = score
			sel.Index = i
		}
	}
	sel.Frame = frames[sel.Index]
	sel.Text = results[sel.Index].text
	sel.TextKnown = results[sel.Index].textOK
	return sel
}

// FrameScore is the ranking signal for one frame.
func FrameScore(text string, logoConfidence float64) float64 {
	if logoConfidence < 0 {
		logoConfidence = 0
	}
	return float64(utf8.RuneCountInString(text)) + LogoWeight*logoConfidence
}
