package openai

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dreamerdocs/document-analysis/internal/core/domain"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/chunking"
	"github.com/dreamerdocs/document-analysis/internal/infrastructure/resilience"
)

const excerptChunkChars = 2000

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// Language the analysis is written in. Defaults to Chinese.
	Language string
	Timeout  time.Duration
	// MaxInputChars caps the document text sent in one request. Longer
	// documents are sampled into an excerpt. Zero sends the full text.
	MaxInputChars int
}

// Analyzer calls an OpenAI-compatible chat completions endpoint and turns the
// JSON answer into an AnalysisResult.
type Analyzer struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	language    string
	maxInput    int
	splitter    *chunking.Splitter
	httpClient  *http.Client
	executor    *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Analyzer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "Chinese"
	}
	return &Analyzer{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		language:    language,
		maxInput:    cfg.MaxInputChars,
		splitter:    chunking.NewSplitter(excerptChunkChars, 0),
		httpClient:  &http.Client{Timeout: timeout},
		executor:    executor,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, text string, options domain.AnalysisOptions) (*domain.AnalysisResult, error) {
	kinds, err := options.Normalize()
	if err != nil {
		return nil, err
	}
	systemPrompt := buildSystemPrompt(kinds, a.language)
	text = a.splitter.Excerpt(text, a.maxInput)

	content, err := a.completeWithResilience(ctx, systemPrompt, text)
	if err != nil {
		return nil, mapLLMError("llm analyze", err)
	}

	result, err := parseAnalysis(content, kinds)
	if err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "llm analyze", err)
	}
	result.Model = a.model
	return result, nil
}

func (a *Analyzer) completeWithResilience(ctx context.Context, systemPrompt, text string) (string, error) {
	if a.executor == nil {
		return a.complete(ctx, systemPrompt, text)
	}
	return resilience.Do(ctx, a.executor, "llm.chat_completions", func(callCtx context.Context) (string, error) {
		return a.complete(callCtx, systemPrompt, text)
	}, classifyLLMError)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func (a *Analyzer) complete(ctx context.Context, systemPrompt, text string) (string, error) {
	request := chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		Temperature:    a.temperature,
		MaxTokens:      a.maxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var response chatResponse
	if err := a.postJSON(ctx, "/chat/completions", request, &response, "chat completions"); err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errEmptyCompletion
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
