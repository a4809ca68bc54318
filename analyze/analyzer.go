package analyze

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Analyzer compares a frame against the reference image and returns the raw
// text the provider produced, which should carry a Verdict.
//
// Implementations hold a provider client and are not shared between
// goroutines; each consumer builds its own with New.
type Analyzer interface {
	Analyze(ctx context.Context, frameJPEG []byte) (string, error)
}

// ProviderError is a failure reported by the analysis provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

type Options struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL overrides the provider endpoint. OpenAI only.
	BaseURL string
	// Reference is the JPEG the frames are compared against.
	Reference []byte
	// Prompt overrides DefaultPrompt.
	Prompt string
}

func (o Options) prompt() string {
	if o.Prompt != "" {
		return o.Prompt
	}
	return DefaultPrompt
}

// New builds an analyzer for the configured provider.
func New(ctx context.Context, o Options) (Analyzer, error) {
	if len(o.Reference) == 0 {
		return nil, errors.New("reference image is required")
	}
	if o.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", o.Provider)
	}
	switch strings.ToLower(o.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAI(o), nil
	case ProviderGemini:
		return NewGemini(ctx, o)
	}
	return nil, fmt.Errorf("unknown analysis provider %q", o.Provider)
}

// Close releases the analyzer's client, if it has one to release.
func Close(a Analyzer) error {
	if c, ok := a.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// LoadReference reads the reference image once at startup.
func LoadReference(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read reference image: %w", err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("reference image %s is empty", path)
	}
	return b, nil
}

func dataURL(jpeg []byte) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)
}
