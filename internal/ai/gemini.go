// gemini.go - Primary provider: Gemini multimodal identification via the genai SDK

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/bosocmputer/product_identify/internal/ratelimit"
	"github.com/bosocmputer/product_identify/pkg/models"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const providerGemini = "gemini"

// contentGenerator is the part of *genai.GenerativeModel the adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the primary adapter.
type GeminiConfig struct {
	APIKey        string
	Model         string
	SingleTimeout time.Duration
	MultiTimeout  time.Duration
	Limiter       *ratelimit.RateLimiter // nil = unlimited
	ClientOptions []option.ClientOption
}

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client        *genai.Client
	model         contentGenerator
	modelName     string
	limiter       *ratelimit.RateLimiter
	singleTimeout time.Duration
	multiTimeout  time.Duration
}

// NewGeminiProvider creates the Gemini client and model once; the client is
// reused across requests.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.ClientOptions...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     ptr(float32(0.1)),
		MaxOutputTokens: ptr(int32(2048)),
	}
	model.ResponseMIMEType = "application/json"

	p := newGeminiWithModel(model, cfg)
	p.client = client
	return p, nil
}

func newGeminiWithModel(model contentGenerator, cfg GeminiConfig) *GeminiProvider {
	p := &GeminiProvider{
		model:         model,
		modelName:     cfg.Model,
		limiter:       cfg.Limiter,
		singleTimeout: cfg.SingleTimeout,
		multiTimeout:  cfg.MultiTimeout,
	}
	if p.singleTimeout <= 0 {
		p.singleTimeout = 30 * time.Second
	}
	if p.multiTimeout <= 0 {
		p.multiTimeout = 45 * time.Second
	}
	return p
}

// Name returns "gemini"
func (g *GeminiProvider) Name() string {
	return providerGemini
}

// Close releases the underlying client.
func (g *GeminiProvider) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// Identify asks Gemini for the single most prominent product.
func (g *GeminiProvider) Identify(ctx context.Context, img Image, textContext string, reqCtx *common.RequestContext) (*models.ProviderResult, error) {
	raw, err := g.generate(ctx, g.singleTimeout, BuildIdentifyPrompt(textContext), img, reqCtx)
	if err != nil {
		return nil, err
	}
	return parseGeminiSingle(raw, reqCtx)
}

// IdentifyMulti asks Gemini for every distinct product in the image.
func (g *GeminiProvider) IdentifyMulti(ctx context.Context, img Image, textContext string, reqCtx *common.RequestContext) ([]models.ProviderResult, error) {
	raw, err := g.generate(ctx, g.multiTimeout, BuildMultiPrompt(textContext), img, reqCtx)
	if err != nil {
		return nil, err
	}
	return parseProductList(providerGemini, raw)
}

func (g *GeminiProvider) generate(ctx context.Context, timeout time.Duration, prompt string, img Image, reqCtx *common.RequestContext) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := g.limiter.Wait(callCtx); err != nil {
		return "", categorizeGeminiError(err)
	}

	reqCtx.LogInfo("🔵 Calling Gemini (model: %s, image: %.1f KB, timeout: %s)",
		g.modelName, float64(len(img.Data))/1024.0, timeout)
	start := time.Now()

	resp, err := g.model.GenerateContent(callCtx,
		genai.Text(prompt),
		genai.Blob{MIMEType: img.MIME, Data: img.Data},
	)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", newProviderError(providerGemini, ErrProviderTimeout, "timeout", err)
		}
		return "", categorizeGeminiError(err)
	}
	reqCtx.LogInfo("✅ Gemini responded in %s", time.Since(start).Round(time.Millisecond))

	if resp.UsageMetadata != nil {
		reqCtx.AddTokens(common.TokenUsage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		})
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", malformed(providerGemini, "no candidates in response")
	}
	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonSafety, genai.FinishReasonRecitation:
		return "", newProviderError(providerGemini, ErrProviderMalformedResponse, "blocked",
			fmt.Errorf("response blocked: %s", cand.FinishReason))
	case genai.FinishReasonMaxTokens:
		reqCtx.LogWarning("⚠️  Gemini response truncated (FinishReason: MAX_TOKENS)")
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", malformed(providerGemini, "empty response")
	}
	return sb.String(), nil
}

// parseGeminiSingle: strict decode first, then per-field salvage.
func parseGeminiSingle(raw string, reqCtx *common.RequestContext) (*models.ProviderResult, error) {
	v, err := parseStrict(raw)
	if err == nil {
		if r, ok := singleFromValue(v, providerGemini); ok {
			return r, nil
		}
		return nil, malformed(providerGemini, "response has no product name")
	}

	if r, ok := salvageResult(raw, providerGemini); ok {
		reqCtx.LogWarning("⚠️  Gemini JSON invalid (%v); salvaged fields, confidence capped at %.1f", err, r.Confidence)
		return r, nil
	}
	return nil, malformed(providerGemini, "unparseable response: %v (preview: %s)", err, preview(raw, 200))
}

// parseProductList decodes a multi-item response, repairing informal JSON if needed.
func parseProductList(provider, raw string) ([]models.ProviderResult, error) {
	v, err := parseStrict(raw)
	if err != nil {
		if lerr := LenientDecode(raw, &v); lerr != nil {
			return nil, malformed(provider, "unparseable product list: %v", lerr)
		}
	}
	list := listFromValue(v, provider)
	if len(list) == 0 {
		return nil, malformed(provider, "no products in response")
	}
	return list, nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func ptr[T any](v T) *T {
	return &v
}
