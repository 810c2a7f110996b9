// mistral.go - Secondary provider: Mistral vision chat completions over HTTP

package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/bosocmputer/product_identify/pkg/models"
)

const providerMistral = "mistral"

// MistralConfig configures the secondary adapter.
type MistralConfig struct {
	APIKey        string
	Model         string
	BaseURL       string
	SingleTimeout time.Duration
	MultiTimeout  time.Duration
	HTTPClient    *http.Client
}

// MistralProvider implements Provider for Mistral AI
type MistralProvider struct {
	apiKey        string
	modelName     string
	baseURL       string
	client        *http.Client
	singleTimeout time.Duration
	multiTimeout  time.Duration
}

// NewMistralProvider creates a new Mistral AI provider
func NewMistralProvider(cfg MistralConfig) (*MistralProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("mistral API key is required")
	}
	m := &MistralProvider{
		apiKey:        cfg.APIKey,
		modelName:     cfg.Model,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		client:        cfg.HTTPClient,
		singleTimeout: cfg.SingleTimeout,
		multiTimeout:  cfg.MultiTimeout,
	}
	if m.baseURL == "" {
		m.baseURL = "https://api.mistral.ai"
	}
	if m.client == nil {
		// per-call deadlines come from the context
		m.client = &http.Client{}
	}
	if m.singleTimeout <= 0 {
		m.singleTimeout = 30 * time.Second
	}
	if m.multiTimeout <= 0 {
		m.multiTimeout = 45 * time.Second
	}
	return m, nil
}

// Name returns "mistral"
func (m *MistralProvider) Name() string {
	return providerMistral
}

// Mistral chat completion request/response structures
type mistralContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type mistralMessage struct {
	Role    string               `json:"role"`
	Content []mistralContentPart `json:"content"`
}

type mistralChatRequest struct {
	Model          string            `json:"model"`
	Messages       []mistralMessage  `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type mistralChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type mistralErrorResponse struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Identify asks Mistral for the single most prominent product.
func (m *MistralProvider) Identify(ctx context.Context, img Image, textContext string, reqCtx *common.RequestContext) (*models.ProviderResult, error) {
	raw, err := m.complete(ctx, m.singleTimeout, BuildIdentifyPrompt(textContext), img, reqCtx)
	if err != nil {
		return nil, err
	}

	var v interface{}
	if err := LenientDecode(raw, &v); err != nil {
		return nil, malformed(providerMistral, "%v (preview: %s)", err, preview(raw, 200))
	}
	r, ok := singleFromValue(v, providerMistral)
	if !ok {
		return nil, malformed(providerMistral, "response has no product name")
	}
	return r, nil
}

// IdentifyMulti asks Mistral for every distinct product in the image.
func (m *MistralProvider) IdentifyMulti(ctx context.Context, img Image, textContext string, reqCtx *common.RequestContext) ([]models.ProviderResult, error) {
	raw, err := m.complete(ctx, m.multiTimeout, BuildMultiPrompt(textContext), img, reqCtx)
	if err != nil {
		return nil, err
	}
	return parseProductList(providerMistral, raw)
}

func (m *MistralProvider) complete(ctx context.Context, timeout time.Duration, prompt string, img Image, reqCtx *common.RequestContext) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	mimeType := img.MIME
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	request := mistralChatRequest{
		Model: m.modelName,
		Messages: []mistralMessage{{
			Role: "user",
			Content: []mistralContentPart{
				{Type: "text", Text: prompt},
				{Type: "image_url", ImageURL: fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(img.Data))},
			},
		}},
		Temperature:    0.1,
		MaxTokens:      2048,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	reqCtx.LogInfo("🔷 Calling Mistral (model: %s, image: %.1f KB, timeout: %s)",
		m.modelName, float64(len(img.Data))/1024.0, timeout)
	start := time.Now()

	response, err := m.callChatAPI(callCtx, request)
	if err != nil {
		return "", err
	}
	reqCtx.LogInfo("✅ Mistral responded in %s", time.Since(start).Round(time.Millisecond))

	reqCtx.AddTokens(common.TokenUsage{
		InputTokens:  response.Usage.PromptTokens,
		OutputTokens: response.Usage.CompletionTokens,
		TotalTokens:  response.Usage.TotalTokens,
	})

	if len(response.Choices) == 0 {
		return "", malformed(providerMistral, "no choices in response")
	}
	text := messageText(response.Choices[0].Message.Content)
	if strings.TrimSpace(text) == "" {
		return "", malformed(providerMistral, "empty response")
	}
	return text, nil
}

// callChatAPI makes the HTTP request and maps transport failures onto provider errors
func (m *MistralProvider) callChatAPI(ctx context.Context, request mistralChatRequest) (*mistralChatResponse, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, newProviderError(providerMistral, ErrProviderUnavailable, "marshal", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/chat/completions", bytes.NewReader(requestBody))
	if err != nil {
		return nil, newProviderError(providerMistral, ErrProviderUnavailable, "request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", m.apiKey))

	resp, err := m.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, newProviderError(providerMistral, ErrProviderTimeout, "timeout", err)
		}
		return nil, newProviderError(providerMistral, ErrProviderUnavailable, "network_error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newProviderError(providerMistral, ErrProviderTimeout, "timeout", err)
		}
		return nil, newProviderError(providerMistral, ErrProviderUnavailable, "read_body", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, mistralStatusError(resp.StatusCode, body)
	}

	var response mistralChatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, malformed(providerMistral, "failed to parse chat response: %v", err)
	}
	return &response, nil
}

func mistralStatusError(status int, body []byte) *ProviderError {
	msg := strings.TrimSpace(string(body))
	var errorResp mistralErrorResponse
	if err := json.Unmarshal(body, &errorResp); err == nil {
		if errorResp.Error.Message != "" {
			msg = errorResp.Error.Message
		} else if errorResp.Message != "" {
			msg = errorResp.Message
		}
	}
	err := fmt.Errorf("mistral API error (%d): %s", status, preview(msg, 300))

	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newProviderError(providerMistral, ErrProviderTimeout, "timeout", err)
	case status == http.StatusTooManyRequests:
		return newProviderError(providerMistral, ErrProviderUnavailable, "rate_limit", err)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return newProviderError(providerMistral, ErrProviderMalformedResponse, "bad_request", err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newProviderError(providerMistral, ErrProviderUnavailable, "unauthorized", err)
	case status >= 500:
		return newProviderError(providerMistral, ErrProviderUnavailable, "server_error", err)
	default:
		return newProviderError(providerMistral, ErrProviderUnavailable, fmt.Sprintf("api_error_%d", status), err)
	}
}

// messageText accepts content as a plain string or as a list of text chunks.
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var chunks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &chunks); err == nil {
		var sb strings.Builder
		for _, c := range chunks {
			sb.WriteString(c.Text)
		}
		return sb.String()
	}
	return ""
}
