package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"google.golang.org/genai"

	"github.com/serbisyo-bataan/matcher/internal/ai"
)

type fakeModels struct {
	calls  int
	model  string
	config *genai.GenerateContentConfig
	prompt string
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGeneratorJoinsTextParts(t *testing.T) {
	models := &fakeModels{resp: textResponse(`{"overallScore":`, "  ", ` 80}`)}
	g := &Generator{models: models, modelName: "gemini-test"}

	out, err := g.GenerateContent(context.Background(), "  score this  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "{\"overallScore\":\n80}" {
		t.Fatalf("unexpected output: %q", out)
	}
	if models.model != "gemini-test" || models.prompt != "score this" {
		t.Fatalf("unexpected request: model=%q prompt=%q", models.model, models.prompt)
	}
	if models.config == nil || models.config.ResponseMIMEType != "application/json" {
		t.Fatalf("expected json response mime type")
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	g := &Generator{models: &fakeModels{resp: &genai.GenerateContentResponse{}}, modelName: "m"}

	if _, err := g.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestGeneratorRejectsEmptyPrompt(t *testing.T) {
	models := &fakeModels{}
	g := &Generator{models: models, modelName: "m"}

	if _, err := g.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
	if models.calls != 0 {
		t.Fatalf("expected no api call, got %d", models.calls)
	}
}

func TestGeneratorNotInitialized(t *testing.T) {
	var g *Generator
	if _, err := g.GenerateContent(context.Background(), "prompt"); !errors.Is(err, ai.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if g.Model() != "" {
		t.Fatalf("expected empty model for nil generator")
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{name: "server error", err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{name: "short quota delay", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "retry after 2 seconds"}},
		{name: "long quota delay", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exhausted, retry after 60 seconds"}, permanent: true},
		{name: "bad request", err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}, permanent: true},
		{name: "plain error", err: errors.New("dial tcp: timeout")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			failing := &fakeModels{err: tt.err}
			g := ai.WithRetries(&Generator{models: failing, modelName: "m"}, 3, 0, nil)
			_, err := g.GenerateContent(context.Background(), "prompt")
			if err == nil {
				t.Fatal("expected error")
			}

			want := 3
			if tt.permanent {
				want = 1
			}
			if failing.calls != want {
				t.Fatalf("expected %d calls, got %d", want, failing.calls)
			}
		})
	}
}
