package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/noah-isme/interview-rescheduler/internal/models"
)

const promptTemplate = `Extract the company name and interview date/time from this email.
Respond ONLY in JSON format:
{
    "company_name": "...",
    "interview_datetime": "..."
}
The interview_datetime must be ISO-8601 (YYYY-MM-DDTHH:MM:SS).
Email text:
%s`

// Config configures the completion endpoint and its circuit breaker.
type Config struct {
	APIKey              string
	BaseURL             string
	Model               string
	RequestTimeout      time.Duration
	BreakerMaxFailures  uint32
	BreakerOpenInterval time.Duration
}

type completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Extractor turns email text into an ExtractedInterview with one completion
// request per email.
type Extractor struct {
	client  completer
	model   string
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New builds an Extractor. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) *Extractor {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if httpClient != nil {
		clientCfg.HTTPClient = httpClient
	}
	return newWithClient(cfg, openai.NewClientWithConfig(clientCfg), logger)
}

func newWithClient(cfg Config, client completer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT3Dot5Turbo
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerOpenInterval <= 0 {
		cfg.BreakerOpenInterval = 30 * time.Second
	}

	maxFailures := cfg.BreakerMaxFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "extraction",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Sugar().Warnw("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Extractor{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.RequestTimeout,
		cb:      cb,
		logger:  logger,
	}
}

// Extract never fails: on any error both fields are nil and RawText keeps the
// input for diagnostics.
func (e *Extractor) Extract(ctx context.Context, text string) models.ExtractedInterview {
	content, err := e.complete(ctx, text)
	if err != nil {
		e.logger.Sugar().Warnw("extraction call failed", "error", err)
		return models.ExtractedInterview{RawText: text}
	}

	parsed, err := Parse(content)
	if err != nil {
		e.logger.Sugar().Warnw("extraction response rejected", "error", err)
		return models.ExtractedInterview{RawText: text}
	}
	return parsed
}

func (e *Extractor) complete(ctx context.Context, text string) (string, error) {
	out, err := e.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		resp, err := e.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(promptTemplate, text)},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("completion returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

type response struct {
	CompanyName       *string `json:"company_name"`
	InterviewDatetime *string `json:"interview_datetime"`
}

// Parse accepts exactly one JSON object holding the two string fields
// company_name and interview_datetime.
func Parse(content string) (models.ExtractedInterview, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(content))))
	dec.DisallowUnknownFields()

	var r response
	if err := dec.Decode(&r); err != nil {
		return models.ExtractedInterview{}, fmt.Errorf("decode extraction json: %w", err)
	}
	if dec.More() {
		return models.ExtractedInterview{}, errors.New("trailing data after extraction json")
	}
	if r.CompanyName == nil || r.InterviewDatetime == nil {
		return models.ExtractedInterview{}, errors.New("extraction json is missing a field")
	}
	return models.ExtractedInterview{CompanyName: r.CompanyName, InterviewDatetime: r.InterviewDatetime}, nil
}
