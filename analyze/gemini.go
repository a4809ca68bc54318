package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const DefaultGeminiModel = "gemini-1.5-flash"

type Gemini struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	reference []byte
	prompt    string
}

func NewGemini(ctx context.Context, o Options) (*Gemini, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(o.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	name := o.Model
	if name == "" {
		name = DefaultGeminiModel
	}
	model := client.GenerativeModel(name)
	model.ResponseMIMEType = "application/json"
	return &Gemini{
		client:    client,
		model:     model,
		reference: o.Reference,
		prompt:    o.prompt(),
	}, nil
}

func (g *Gemini) Analyze(ctx context.Context, frameJPEG []byte) (string, error) {
	res, err := g.model.GenerateContent(ctx,
		genai.ImageData("jpeg", g.reference),
		genai.ImageData("jpeg", frameJPEG),
		genai.Text(g.prompt),
	)
	if err != nil {
		return "", geminiError(err)
	}
	return geminiText(res)
}

func geminiError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &ProviderError{
			Provider:   ProviderGemini,
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Err:        err,
		}
	}
	return fmt.Errorf("Gemini request failed: %w", err)
}

// geminiText joins the text parts of the first candidate.
func geminiText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", errors.New("no response from Gemini")
	}
	var b strings.Builder
	for _, p := range res.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("unexpected response format from Gemini")
	}
	return strings.TrimSpace(b.String()), nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}
