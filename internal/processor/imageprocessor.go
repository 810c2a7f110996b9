// imageprocessor.go - Image decoding, fingerprinting and resizing for detection, inference and storage

package processor

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"image/jpeg"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

// PreprocessMode defines what a resized copy of the image is for
type PreprocessMode int

const (
	// DetectionMode: small copy for OCR/logo scoring (speed priority)
	DetectionMode PreprocessMode = iota
	// InferenceMode: copy sent to the multimodal providers (balance)
	InferenceMode
	// StorageMode: compressed copy persisted to the object store (size priority)
	StorageMode
)

// ErrNotAnImage is returned when bytes do not sniff as a supported image type
var ErrNotAnImage = errors.New("data is not a supported image")

// Fingerprint returns the hex SHA-256 of the canonical image bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BurstFingerprint keys a burst by the ordered digests of its frames.
// A single-frame burst fingerprints exactly like the frame itself.
func BurstFingerprint(frames [][]byte) string {
	if len(frames) == 1 {
		return Fingerprint(frames[0])
	}
	h := sha256.New()
	for _, f := range frames {
		sum := sha256.Sum256(f)
		h.Write(sum[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DecodeBase64Image decodes plain or data-URL ("data:image/png;base64,...") payloads.
func DecodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URL")
		}
		s = s[idx+1:]
	}
	if s == "" {
		return nil, fmt.Errorf("empty image payload")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some clients strip padding
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 image: %w", err)
		}
	}
	return data, nil
}

// DetectMIME sniffs the image MIME type; anything non-image returns ErrNotAnImage.
func DetectMIME(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotAnImage, mt.String())
	}
	return mt.String(), nil
}

// Preprocess returns a resized JPEG copy suited to the given mode.
// Images already within bounds are re-encoded only in StorageMode.
func Preprocess(data []byte, mode PreprocessMode) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	var maxDimension, quality int
	switch mode {
	case DetectionMode:
		maxDimension, quality = 1280, 85
	case InferenceMode:
		maxDimension, quality = 2000, 90
	case StorageMode:
		maxDimension, quality = 1024, 75
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	oversized := width > maxDimension || height > maxDimension

	if !oversized && mode != StorageMode {
		mimeType, err := DetectMIME(data)
		if err != nil {
			return nil, "", err
		}
		return data, mimeType, nil
	}

	if oversized {
		if width > height {
			img = imaging.Resize(img, maxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, maxDimension, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", fmt.Errorf("failed to encode processed image: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// PrepareForInference is Preprocess in InferenceMode, falling back to the original bytes.
func PrepareForInference(data []byte) ([]byte, string) {
	out, mimeType, err := Preprocess(data, InferenceMode)
	if err != nil {
		mimeType, mimeErr := DetectMIME(data)
		if mimeErr != nil {
			mimeType = "image/jpeg"
		}
		return data, mimeType
	}
	return out, mimeType
}

// PrepareForDetection is the copy handed to OCR and logo detection. Bytes that
// cannot be decoded are passed through unchanged and left to the detector to reject.
func PrepareForDetection(data []byte) []byte {
	out, _, err := Preprocess(data, DetectionMode)
	if err != nil {
		return data
	}
	return out
}

// CompressForStorage produces the small JPEG kept alongside a cache entry.
func CompressForStorage(data []byte) ([]byte, error) {
	out, _, err := Preprocess(data, StorageMode)
	return out, err
}
