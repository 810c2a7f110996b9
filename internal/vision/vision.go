// vision.go - Google Cloud Vision text and logo detection

package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	visionapi "google.golang.org/api/vision/v1"
)

const (
	featureText = "TEXT_DETECTION"
	featureLogo = "LOGO_DETECTION"

	defaultTimeout = 10 * time.Second
)

// Logo is one detected brand mark.
type Logo struct {
	Description string
	Score       float64
}

// Client wraps the Vision REST API for OCR and logo detection.
type Client struct {
	svc     *visionapi.Service
	timeout time.Duration
}

// New creates a Vision client authenticated with an API key.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision API key is required")
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := visionapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}

	return &Client{svc: svc, timeout: defaultTimeout}, nil
}

// DetectText returns the full recognized text of the image.
func (c *Client) DetectText(ctx context.Context, image []byte) (string, error) {
	resp, err := c.annotate(ctx, image, featureText, 0)
	if err != nil {
		return "", err
	}

	if resp.FullTextAnnotation != nil && resp.FullTextAnnotation.Text != "" {
		return strings.TrimSpace(resp.FullTextAnnotation.Text), nil
	}
	if len(resp.TextAnnotations) > 0 {
		return strings.TrimSpace(resp.TextAnnotations[0].Description), nil
	}
	return "", nil
}

// DetectLogo returns the confidence of the strongest logo, 0 when none.
func (c *Client) DetectLogo(ctx context.Context, image []byte) (float64, error) {
	logos, err := c.DetectLogos(ctx, image)
	if err != nil {
		return 0, err
	}
	best := 0.0
	for _, l := range logos {
		if l.Score > best {
			best = l.Score
		}
	}
	return best, nil
}

// DetectLogos returns every logo found, strongest first as reported by the API.
func (c *Client) DetectLogos(ctx context.Context, image []byte) ([]Logo, error) {
	resp, err := c.annotate(ctx, image, featureLogo, 5)
	if err != nil {
		return nil, err
	}

	logos := make([]Logo, 0, len(resp.LogoAnnotations))
	for _, a := range resp.LogoAnnotations {
		logos = append(logos, Logo{Description: a.Description, Score: a.Score})
	}
	return logos, nil
}

func (c *Client) annotate(ctx context.Context, image []byte, feature string, maxResults int64) (*visionapi.AnnotateImageResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &visionapi.BatchAnnotateImagesRequest{
		Requests: []*visionapi.AnnotateImageRequest{
			{
				Image:    &visionapi.Image{Content: base64.StdEncoding.EncodeToString(image)},
				Features: []*visionapi.Feature{{Type: feature, MaxResults: maxResults}},
			},
		},
	}

	batch, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("vision %s failed: %w", strings.ToLower(feature), err)
	}
	if len(batch.Responses) == 0 {
		return nil, fmt.Errorf("vision %s returned no responses", strings.ToLower(feature))
	}

	resp := batch.Responses[0]
	if resp.Error != nil {
		return nil, fmt.Errorf("vision %s error (%d): %s", strings.ToLower(feature), resp.Error.Code, resp.Error.Message)
	}
	return resp, nil
}
