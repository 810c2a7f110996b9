package processor

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 128, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestFingerprint_Stable(t *testing.T) {
	data := []byte("same bytes")
	a := Fingerprint(data)
	b := Fingerprint(append([]byte(nil), data...))
	if a != b {
		t.Errorf("fingerprints differ for identical bytes: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("expected hex sha256, got %q", a)
	}
	if Fingerprint([]byte("other")) == a {
		t.Error("different bytes should not collide")
	}
}

func TestFingerprint_OriginIndependent(t *testing.T) {
	raw := testPNG(t, 4, 4)
	encoded := base64.StdEncoding.EncodeToString(raw)

	plain, err := DecodeBase64Image(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	dataURL, err := DecodeBase64Image("data:image/png;base64," + encoded)
	if err != nil {
		t.Fatalf("decode data url: %v", err)
	}
	if Fingerprint(plain) != Fingerprint(raw) || Fingerprint(dataURL) != Fingerprint(raw) {
		t.Error("decoded payloads must fingerprint like the raw bytes")
	}
}

func TestBurstFingerprint(t *testing.T) {
	a, b := []byte("frame-a"), []byte("frame-b")
	if BurstFingerprint([][]byte{a}) != Fingerprint(a) {
		t.Error("single-frame burst should match the frame fingerprint")
	}
	if BurstFingerprint([][]byte{a, b}) == BurstFingerprint([][]byte{b, a}) {
		t.Error("frame order should change the burst fingerprint")
	}
	if BurstFingerprint([][]byte{a, b}) != BurstFingerprint([][]byte{a, b}) {
		t.Error("burst fingerprint must be deterministic")
	}
}

func TestDecodeBase64Image_Errors(t *testing.T) {
	for _, in := range []string{"", "data:image/png;base64", "!!!not-base64!!!"} {
		if _, err := DecodeBase64Image(in); err == nil {
			t.Errorf("DecodeBase64Image(%q) expected error", in)
		}
	}
}

func TestDetectMIME(t *testing.T) {
	mt, err := DetectMIME(testPNG(t, 2, 2))
	if err != nil || mt != "image/png" {
		t.Errorf("DetectMIME(png) = %q, %v", mt, err)
	}
	if _, err := DetectMIME([]byte("%PDF-1.4 not an image")); !errors.Is(err, ErrNotAnImage) {
		t.Errorf("expected ErrNotAnImage, got %v", err)
	}
}

func TestPreprocess(t *testing.T) {
	small := testPNG(t, 10, 10)

	out, mt, err := Preprocess(small, InferenceMode)
	if err != nil {
		t.Fatalf("Preprocess: %v", err)
	}
	if mt != "image/png" || !bytes.Equal(out, small) {
		t.Error("in-bounds inference image should pass through untouched")
	}

	stored, err := CompressForStorage(testPNG(t, 1100, 20))
	if err != nil {
		t.Fatalf("CompressForStorage: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(stored))
	if err != nil {
		t.Fatalf("decode stored: %v", err)
	}
	if format != "jpeg" || cfg.Width != 1024 {
		t.Errorf("stored image = %s %dx%d, want jpeg width 1024", format, cfg.Width, cfg.Height)
	}
}

func TestPrepareForInference_FallsBackOnGarbage(t *testing.T) {
	data := []byte("definitely not an image")
	out, mt := PrepareForInference(data)
	if !bytes.Equal(out, data) || mt != "image/jpeg" {
		t.Errorf("expected passthrough with default mime, got %q", mt)
	}
}

func TestPrepareForDetection(t *testing.T) {
	out := PrepareForDetection(testPNG(t, 2000, 40))
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode detection copy: %v", err)
	}
	if cfg.Width != 1280 {
		t.Errorf("detection copy width = %d, want 1280", cfg.Width)
	}

	garbage := []byte("not an image")
	if got := PrepareForDetection(garbage); !bytes.Equal(got, garbage) {
		t.Error("undecodable bytes should pass through")
	}
}
