package features

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/gyeh/plan-advisor/internal/plan"
)

//go:embed prompt.txt
var defaultPrompt string

// DefaultPrompt returns the embedded system instruction.
func DefaultPrompt() string { return defaultPrompt }

// generator is the subset of *genai.Models the deriver calls.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIOptions configures GenAIDeriver.
type GenAIOptions struct {
	APIKey         string
	Model          string
	Temperature    float32
	ThinkingBudget int32
	Timeout        time.Duration
	// PromptPath overrides the embedded system instruction.
	PromptPath string
	Keywords   map[string][]string
	Logger     *zap.Logger
}

// GenAIDeriver derives features with a Gemini model.
type GenAIDeriver struct {
	models   generator
	model    string
	config   *genai.GenerateContentConfig
	timeout  time.Duration
	keywords map[string][]string
	log      *zap.Logger
}

// NewGenAIDeriver creates a Gemini-backed deriver.
func NewGenAIDeriver(ctx context.Context, opts GenAIOptions) (*GenAIDeriver, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required (set GEMINI_API_KEY)")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newGenAIDeriver(client.Models, opts)
}

func newGenAIDeriver(models generator, opts GenAIOptions) (*GenAIDeriver, error) {
	prompt := defaultPrompt
	if opts.PromptPath != "" {
		data, err := os.ReadFile(opts.PromptPath)
		if err != nil {
			return nil, fmt.Errorf("reading prompt: %w", err)
		}
		prompt = string(data)
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash-lite"
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &GenAIDeriver{
		models: models,
		model:  opts.Model,
		config: &genai.GenerateContentConfig{
			Temperature:       genai.Ptr(opts.Temperature),
			SystemInstruction: genai.NewContentFromText(prompt, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget: genai.Ptr(opts.ThinkingBudget),
			},
		},
		timeout:  opts.Timeout,
		keywords: opts.Keywords,
		log:      log,
	}, nil
}

// Derive sends the client record to the model and decodes its answer.
// There are no retries.
func (d *GenAIDeriver) Derive(ctx context.Context, clientJSON []byte) (*plan.Features, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := d.models.GenerateContent(ctx, d.model, genai.Text(string(clientJSON)), d.config)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}
	raw := resp.Text()
	d.log.Debug("features generated",
		zap.String("model", d.model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", len(raw)))

	f, err := CleanAndParse(raw, d.keywords)
	if err != nil {
		d.log.Error("failed to parse generated features", zap.String("raw", raw), zap.Error(err))
		return nil, err
	}
	return f, nil
}
