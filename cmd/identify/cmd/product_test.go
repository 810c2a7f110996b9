package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildInput(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.jpg")
	b := filepath.Join(dir, "b.jpg")
	os.WriteFile(a, []byte("frame-a"), 0o644)
	os.WriteFile(b, []byte("frame-b"), 0o644)

	in, err := buildInput([]string{"https://example.com/p.jpg"})
	if err != nil || in.ImageURL != "https://example.com/p.jpg" {
		t.Errorf("url input = %+v, %v", in, err)
	}

	in, err = buildInput([]string{a})
	if err != nil || in.ImageBase64 != "ZnJhbWUtYQ==" || len(in.FramesBase64) != 0 {
		t.Errorf("single input = %+v, %v", in, err)
	}

	in, err = buildInput([]string{a, b})
	if err != nil || len(in.FramesBase64) != 2 || in.ImageBase64 != "" {
		t.Errorf("burst input = %+v, %v", in, err)
	}

	if _, err := buildInput([]string{filepath.Join(dir, "missing.jpg")}); err == nil {
		t.Error("expected error for missing file")
	}
}
