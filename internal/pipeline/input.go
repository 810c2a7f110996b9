// input.go - Resolves request payloads into canonical image buffers

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bosocmputer/product_identify/internal/processor"
)

// Input is one identification request as received from a client.
type Input struct {
	ImageBase64  string
	ImageURL     string
	FramesBase64 []string
	Barcode      string // optional client hint
}

// InputError is a client mistake; the API answers 400.
type InputError struct {
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *InputError) Unwrap() error { return e.Err }

// ErrNoImage means none of imageBase64, imageUrl or framesBase64 was supplied.
var ErrNoImage = &InputError{Reason: "imageBase64, imageUrl or framesBase64 is required"}

// ImageFetcher downloads an image referenced by URL.
type ImageFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

// HTTPFetcher fetches http(s) URLs with a size cap.
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPFetcher creates a fetcher; maxBytes <= 0 means 10 MB.
func NewHTTPFetcher(maxBytes int64) *HTTPFetcher {
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		maxBytes: maxBytes,
	}
}

// Fetch downloads the image, refusing bodies larger than the cap.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("unsupported image URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("image is %d bytes, limit is %d", resp.ContentLength, f.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}

// resolveFrames turns the request into 1..MaxFrames validated image buffers.
// Precedence: framesBase64, then imageBase64, then imageUrl.
func (c *Controller) resolveFrames(ctx context.Context, in Input) ([][]byte, error) {
	var frames [][]byte

	switch {
	case len(in.FramesBase64) > 0:
		encoded := in.FramesBase64
		if len(encoded) > processor.MaxFrames {
			encoded = encoded[:processor.MaxFrames]
		}
		for i, s := range encoded {
			data, err := processor.DecodeBase64Image(s)
			if err != nil {
				return nil, &InputError{Reason: fmt.Sprintf("framesBase64[%d] is not valid base64", i), Err: err}
			}
			frames = append(frames, data)
		}

	case strings.TrimSpace(in.ImageBase64) != "":
		data, err := processor.DecodeBase64Image(in.ImageBase64)
		if err != nil {
			return nil, &InputError{Reason: "imageBase64 is not valid base64", Err: err}
		}
		frames = [][]byte{data}

	case strings.TrimSpace(in.ImageURL) != "":
		if c.fetcher == nil {
			return nil, &InputError{Reason: "imageUrl is not supported"}
		}
		data, err := c.fetcher.Fetch(ctx, strings.TrimSpace(in.ImageURL))
		if err != nil {
			return nil, &InputError{Reason: "could not fetch imageUrl", Err: err}
		}
		frames = [][]byte{data}

	default:
		return nil, ErrNoImage
	}

	for i, f := range frames {
		if int64(len(f)) > c.maxImageBytes {
			return nil, &InputError{Reason: fmt.Sprintf("image %d exceeds %d bytes", i, c.maxImageBytes)}
		}
		if _, err := processor.DetectMIME(f); err != nil {
			return nil, &InputError{Reason: fmt.Sprintf("image %d is not a supported image", i), Err: err}
		}
	}
	return frames, nil
}

// IsInputError reports whether err should be answered with 400.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
