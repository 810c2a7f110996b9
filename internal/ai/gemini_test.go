package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bosocmputer/product_identify/internal/common"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

type fakeModel struct {
	text   string
	err    error
	block  bool
	prompt string
	blob   genai.Blob
	usage  *genai.UsageMetadata
	reason genai.FinishReason
}

func (f *fakeModel) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		switch v := p.(type) {
		case genai.Text:
			f.prompt = string(v)
		case genai.Blob:
			f.blob = v
		}
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	reason := f.reason
	if reason == 0 {
		reason = genai.FinishReasonStop
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []genai.Part{genai.Text(f.text)}},
			FinishReason: reason,
		}},
		UsageMetadata: f.usage,
	}, nil
}

func TestGeminiProvider_Identify(t *testing.T) {
	model := &fakeModel{
		text:  `{"name": "Rapid Relief", "brand": "Sensodyne", "unit": "70 g", "gst": 18, "confidence": 0.9}`,
		usage: &genai.UsageMetadata{PromptTokenCount: 100, CandidatesTokenCount: 20, TotalTokenCount: 120},
	}
	g := newGeminiWithModel(model, GeminiConfig{Model: "test-model"})
	reqCtx := common.NewRequestContext("t")

	img := Image{Data: []byte{0xff, 0xd8}, MIME: "image/jpeg"}
	r, err := g.Identify(context.Background(), img, "Barcode: 8901571000219", reqCtx)
	if err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	if r.Name != "Rapid Relief" || r.Source != "gemini" || r.GST == nil || *r.GST != 18 {
		t.Errorf("unexpected result %+v", r)
	}
	if !strings.Contains(model.prompt, "Barcode: 8901571000219") {
		t.Error("text context not included in prompt")
	}
	if model.blob.MIMEType != "image/jpeg" || len(model.blob.Data) != 2 {
		t.Errorf("image not forwarded: %+v", model.blob)
	}
	if reqCtx.TotalTokens.TotalTokens != 120 {
		t.Errorf("tokens = %d, want 120", reqCtx.TotalTokens.TotalTokens)
	}
}

func TestGeminiProvider_IdentifyMulti(t *testing.T) {
	model := &fakeModel{text: `{"products": [{"name": "Tata Salt"}, {"name": "Aashirvaad Atta"}]}`}
	g := newGeminiWithModel(model, GeminiConfig{})

	list, err := g.IdentifyMulti(context.Background(), Image{}, "", common.NewRequestContext("t"))
	if err != nil {
		t.Fatalf("IdentifyMulti() error = %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d products, want 2", len(list))
	}
	if !strings.Contains(model.prompt, `{"products"`) {
		t.Error("multi prompt not used")
	}
}

func TestGeminiProvider_Errors(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
		kind  error
	}{
		{"rate limited", &fakeModel{err: &googleapi.Error{Code: 429}}, ErrProviderUnavailable},
		{"server error", &fakeModel{err: &googleapi.Error{Code: 503}}, ErrProviderUnavailable},
		{"blocked", &fakeModel{text: "{}", reason: genai.FinishReasonSafety}, ErrProviderMalformedResponse},
		{"empty text", &fakeModel{text: "  "}, ErrProviderMalformedResponse},
		{"no name", &fakeModel{text: `{"brand": "x"}`}, ErrProviderMalformedResponse},
		{"timeout", &fakeModel{block: true}, ErrProviderTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGeminiWithModel(tt.model, GeminiConfig{SingleTimeout: 50 * time.Millisecond})
			_, err := g.Identify(context.Background(), Image{}, "", common.NewRequestContext("t"))
			if !errors.Is(err, tt.kind) {
				t.Fatalf("error = %v, want %v", err, tt.kind)
			}
			var perr *ProviderError
			if !errors.As(err, &perr) || perr.Provider != "gemini" {
				t.Errorf("error %v is not a gemini *ProviderError", err)
			}
		})
	}
}

func TestCategorizeGeminiError(t *testing.T) {
	tests := []struct {
		err      error
		kind     error
		category string
	}{
		{&googleapi.Error{Code: 400}, ErrProviderMalformedResponse, "bad_request"},
		{&googleapi.Error{Code: 403}, ErrProviderUnavailable, "forbidden"},
		{&googleapi.Error{Code: 504}, ErrProviderTimeout, "gateway_timeout"},
		{context.DeadlineExceeded, ErrProviderTimeout, "timeout"},
		{errors.New("googleapi: quota exceeded"), ErrProviderUnavailable, "quota_exceeded"},
		{errors.New("dial tcp: connection refused"), ErrProviderUnavailable, "network_error"},
	}
	for _, tt := range tests {
		got := categorizeGeminiError(tt.err)
		if !errors.Is(got, tt.kind) || got.Category != tt.category {
			t.Errorf("categorizeGeminiError(%v) = %v/%s, want %v/%s", tt.err, got.Kind, got.Category, tt.kind, tt.category)
		}
	}
	if categorizeGeminiError(nil) != nil {
		t.Error("nil error should stay nil")
	}
}
