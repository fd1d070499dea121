package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/justsurfingit/job-outreach/internal/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// CompletionRequest is one system+user exchange with the model.
type CompletionRequest struct {
	System    string
	User      string
	JSON      bool
	MaxTokens int
}

type TextCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Completion carries either a model answer or the reason there is none.
type Completion struct {
	Text string
	Err  error
}

func (c Completion) OK() bool { return c.Err == nil }

// Or returns the answer, or fallback when the call failed.
func (c Completion) Or(fallback string) string {
	if c.Err != nil {
		return fallback
	}
	return c.Text
}

// Complete runs req and folds the result into a Completion. It never panics on
// provider errors, and JSON requests get their body validated.
func Complete(ctx context.Context, tc TextCompleter, req CompletionRequest) Completion {
	text, err := tc.Complete(ctx, req)
	if err != nil {
		return Completion{Err: err}
	}
	text = strings.TrimSpace(text)
	if req.JSON {
		text = stripCodeFence(text)
		if !json.Valid([]byte(text)) {
			return Completion{Err: fmt.Errorf("model returned malformed JSON")}
		}
	}
	if text == "" {
		return Completion{Err: ErrEmptyCompletion}
	}
	return Completion{Text: text}
}

// stripCodeFence removes a ```json ... ``` wrapper some models add despite instructions.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

type LLMService struct {
	Client    llms.Model
	Timeout   time.Duration
	MaxTokens int
	Log       *zap.Logger
}

// NewLLMService initializes the configured provider: Gemini through googleai,
// or any OpenAI-compatible endpoint (Groq, OpenAI) through openai.
func NewLLMService(ctx context.Context, cfg config.LLMConfig, log *zap.Logger) (*LLMService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is empty for provider %s", cfg.Provider)
	}

	var (
		model llms.Model
		err   error
	)
	switch cfg.Provider {
	case "googleai":
		model, err = googleai.New(ctx,
			googleai.WithAPIKey(cfg.APIKey),
			googleai.WithDefaultModel(cfg.Model),
		)
	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	return &LLMService{Client: model, Timeout: cfg.Timeout, MaxTokens: cfg.MaxTokens, Log: log}, nil
}

func (s *LLMService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	msgs := make([]llms.MessageContent, 0, 2)
	if req.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, req.User))

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.MaxTokens
	}
	var opts []llms.CallOption
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := s.Client.GenerateContent(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}

const jobExtractionPrompt = `
You are an expert Job Data Extraction Agent. Your task is to analyze the provided raw HTML/Text from a job posting and extract structured data.

### INSTRUCTIONS:
1. **Ignore** navigation menus, footers, "similar jobs" lists, and site advertisements.
2. **Extract** the fields below strictly. If a piece of information is missing, set the value to null. Do not guess.
3. **Format** the output as valid JSON only.

### OUTPUT SCHEMA:
{
    "company_name": "Name of the company",
    "role_title": "Job title",
    "location": "Job location or 'Remote'",
    "description": "Responsibilities and requirements, HTML removed",
    "tech_stack": ["Go", "AWS"],
    "salary_range": "Salary string if explicitly mentioned, otherwise null",
    "recruiter_email": "A hiring contact email if one appears in the text, otherwise null"
}
`

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// ExtractJobDetails takes raw HTML and returns the extracted posting as JSON.
func (s *LLMService) ExtractJobDetails(ctx context.Context, rawHTML string) (string, error) {
	rawHTML = truncateUTF8(rawHTML, 20000)
	c := Complete(ctx, s, CompletionRequest{
		System: jobExtractionPrompt,
		User:   rawHTML,
		JSON:   true,
	})
	return c.Text, c.Err
}
