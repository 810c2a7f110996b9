package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeDetector keys its answers by the frame's content.
type fakeDetector struct {
	texts     map[string]string
	logos     map[string]float64
	textErr   map[string]bool
	logoErr   map[string]bool
	textCalls atomic.Int32
	logoCalls atomic.Int32
}

func (f *fakeDetector) DetectText(_ context.Context, image []byte) (string, error) {
	f.textCalls.Add(1)
	if f.textErr[string(image)] {
		return "", errors.New("ocr down")
	}
	return f.texts[string(image)], nil
}

func (f *fakeDetector) DetectLogo(_ context.Context, image []byte) (float64, error) {
	f.logoCalls.Add(1)
	if f.logoErr[string(image)] {
		return 0, errors.New("logo down")
	}
	return f.logos[string(image)], nil
}

func burst(names ...string) [][]byte {
	out := make([][]byte, len(names))
	for i, n := range names {
		out[i] = []byte(n)
	}
	return out
}

func TestFrameScore(t *testing.T) {
	if got := FrameScore(strings.Repeat("a", 50), 0); got != 50 {
		t.Errorf("FrameScore(50 chars, 0) = %v, want 50", got)
	}
	if got := FrameScore("", 0.9); got != 270 {
		t.Errorf("FrameScore(empty, 0.9) = %v, want 270", got)
	}
}

func TestSelect_LogoFrameBeatsShortText(t *testing.T) {
	// frame1: 50 chars of text, no logo -> 50
	// frame2: no text, logo 0.9 -> 0 + 300*0.9 = 270
	// frame3: nothing -> 0
	det := &fakeDetector{
		texts: map[string]string{"f1": strings.Repeat("x", 50)},
		logos: map[string]float64{"f2": 0.9},
	}
	sel := NewFrameSelector(det, det).Select(context.Background(), burst("f1", "f2", "f3"))

	if sel.Scores[0] != 50 || sel.Scores[1] != 270 || sel.Scores[2] != 0 {
		t.Fatalf("scores = %v, want [50 270 0]", sel.Scores)
	}
	if sel.Index != 1 || string(sel.Frame) != "f2" {
		t.Errorf("selected index %d (%s), want 1 (f2)", sel.Index, sel.Frame)
	}
}

func TestSelect_LongTextBeatsLogo(t *testing.T) {
	// 271 chars > 270, so the text frame wins
	det := &fakeDetector{
		texts: map[string]string{"f1": strings.Repeat("x", 271)},
		logos: map[string]float64{"f2": 0.9},
	}
	sel := NewFrameSelector(det, det).Select(context.Background(), burst("f1", "f2", "f3"))
	if sel.Index != 0 {
		t.Errorf("selected %d, want 0 (scores %v)", sel.Index, sel.Scores)
	}
	if !sel.TextKnown || len(sel.Text) != 271 {
		t.Errorf("winner OCR text not carried: known=%v len=%d", sel.TextKnown, len(sel.Text))
	}
}

func TestSelect_TieGoesToLowestIndex(t *testing.T) {
	// 270 chars ties 0.9 logo exactly
	det := &fakeDetector{
		texts: map[string]string{"f2": strings.Repeat("x", 270)},
		logos: map[string]float64{"f3": 0.9},
	}
	sel := NewFrameSelector(det, det).Select(context.Background(), burst("f1", "f2", "f3"))
	if sel.Index != 1 {
		t.Errorf("selected %d, want 1 (scores %v)", sel.Index, sel.Scores)
	}
}

func TestSelect_AllDetectorsFail(t *testing.T) {
	det := &fakeDetector{
		textErr: map[string]bool{"f1": true, "f2": true},
		logoErr: map[string]bool{"f1": true, "f2": true},
	}
	sel := NewFrameSelector(det, det).Select(context.Background(), burst("f1", "f2"))
	if sel.Index != 0 || string(sel.Frame) != "f1" {
		t.Errorf("expected first frame, got %d", sel.Index)
	}
	if sel.TextKnown {
		t.Error("TextKnown must be false when OCR failed")
	}
}

func TestSelect_PartialFailureScoresZero(t *testing.T) {
	det := &fakeDetector{
		texts:   map[string]string{"f1": "abc", "f2": "abcdef"},
		textErr: map[string]bool{"f2": true},
		logos:   map[string]float64{"f2": 0.001},
	}
	sel := NewFrameSelector(det, det).Select(context.Background(), burst("f1", "f2"))
	// f1 = 3, f2 = 0 (failed OCR) + 0.3
	if sel.Index != 0 {
		t.Errorf("selected %d, want 0 (scores %v)", sel.Index, sel.Scores)
	}
}

func TestSelect_TruncatesToMaxFrames(t *testing.T) {
	det := &fakeDetector{
		texts: map[string]string{"f6": strings.Repeat("x", 1000)},
	}
	sel := NewFrameSelector(det, det).Select(context.Background(), burst("f1", "f2", "f3", "f4", "f5", "f6"))
	if len(sel.Scores) != MaxFrames {
		t.Errorf("scored %d frames, want %d", len(sel.Scores), MaxFrames)
	}
	if sel.Index == 5 {
		t.Error("sixth frame must never be considered")
	}
	if got := det.textCalls.Load(); got != MaxFrames {
		t.Errorf("text detector called %d times, want %d", got, MaxFrames)
	}
}

func TestSelect_SingleFrameSkipsDetectors(t *testing.T) {
	det := &fakeDetector{}
	sel := NewFrameSelector(det, det).Select(context.Background(), burst("only"))
	if sel.Index != 0 || string(sel.Frame) != "only" {
		t.Errorf("unexpected selection %+v", sel)
	}
	if det.textCalls.Load() != 0 || det.logoCalls.Load() != 0 {
		t.Error("detectors should not run for a single frame")
	}
}

func TestSelect_NilDetectors(t *testing.T) {
	sel := NewFrameSelector(nil, nil).Select(context.Background(), burst("a", "b"))
	if sel.Index != 0 {
		t.Errorf("selected %d, want 0", sel.Index)
	}
	if got := NewFrameSelector(nil, nil).Select(context.Background(), nil); got.Index != -1 {
		t.Errorf("empty burst index = %d, want -1", got.Index)
	}
}

// sizeRecorder remembers the widest image any detector call received.
type sizeRecorder struct {
	mu       sync.Mutex
	maxWidth int
}

func (r *sizeRecorder) record(data []byte) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg.Width > r.maxWidth {
		r.maxWidth = cfg.Width
	}
}

func (r *sizeRecorder) DetectText(_ context.Context, data []byte) (string, error) {
	r.record(data)
	return "text", nil
}

func (r *sizeRecorder) DetectLogo(_ context.Context, data []byte) (float64, error) {
	r.record(data)
	return 0, nil
}

func TestSelect_DetectorsSeeDownscaledFrames(t *testing.T) {
	rec := &sizeRecorder{}
	frames := [][]byte{testPNG(t, 1600, 30), testPNG(t, 1500, 30)}

	sel := NewFrameSelector(rec, rec).Select(context.Background(), frames)

	if rec.maxWidth == 0 || rec.maxWidth > 1280 {
		t.Errorf("detectors saw width %d, want <= 1280", rec.maxWidth)
	}
	if !bytes.Equal(sel.Frame, frames[sel.Index]) {
		t.Error("selection must return the original frame bytes")
	}
}
