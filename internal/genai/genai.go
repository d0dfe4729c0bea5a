// Package genai talks to the OpenAI API: chat replies, goal breakdowns and
// speech synthesis.
package genai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

var (
	// ErrNoChoicesReturned is returned when a completion carries no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrAPIKeyMissing is returned by NewClient without an API key.
	ErrAPIKeyMissing = errors.New("OpenAI API key not set")
)

const (
	DefaultModel       = openai.ChatModelGPT4oMini
	DefaultTemperature = 0.7
	// breakdownTemperature keeps plans close to the requested format.
	breakdownTemperature = 0.3
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// speechService defines minimal interface for text-to-speech.
type speechService interface {
	New(ctx context.Context, params openai.AudioSpeechNewParams, opts ...option.RequestOption) (*http.Response, error)
}

// completions adapts the SDK's completion service to chatService.
type completions struct {
	svc *openai.ChatCompletionService
}

func (c completions) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := c.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey      string
	Model       string
	Temperature float64
	Voice       string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature overrides the reply sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithVoice selects the TTS voice, e.g. "alloy" or "nova".
func WithVoice(voice string) Option {
	return func(o *Opts) { o.Voice = voice }
}

// Client wraps the OpenAI services ReplyPipe uses.
type Client struct {
	chat        chatService
	speech      speechService
	model       string
	temperature float64
	voice       openai.AudioSpeechNewParamsVoice
}

// NewClient builds a client from options.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: DefaultModel, Temperature: DefaultTemperature, Voice: string(openai.AudioSpeechNewParamsVoiceAlloy)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}
	slog.Debug("genai.NewClient", "model", cfg.Model, "voice", cfg.Voice)

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Client{
		chat:        completions{svc: &cli.Chat.Completions},
		speech:      &cli.Audio.Speech,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		voice:       openai.AudioSpeechNewParamsVoice(cfg.Voice),
	}, nil
}

// complete runs one system+user exchange and returns the first choice.
func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, jsonOutput bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Model:       c.model,
		Temperature: openai.Float(temperature),
	}
	if jsonOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// Reply answers one user utterance. The result is the model's raw JSON text;
// callers normalize and classify it.
func (c *Client) Reply(ctx context.Context, utterance string) (any, error) {
	content, err := c.complete(ctx, replySystemPrompt, utterance, c.temperature, true)
	if err != nil {
		slog.Error("Client.Reply failed", "error", err)
		return nil, err
	}
	slog.Debug("Client.Reply succeeded", "length", len(content))
	return content, nil
}

// BreakDown asks for a step-by-step plan for goal as free text.
func (c *Client) BreakDown(ctx context.Context, goal string) (string, error) {
	content, err := c.complete(ctx, breakdownSystemPrompt, breakdownPrompt(goal), breakdownTemperature, false)
	if err != nil {
		slog.Error("Client.BreakDown failed", "error", err)
		return "", err
	}
	return content, nil
}

// Synthesize renders text as WAV audio. The model infers pronunciation from
// the text itself; languageCode is only logged.
func (c *Client) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("speech text cannot be empty")
	}
	resp, err := c.speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModelTTS1,
		Voice:          c.voice,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech audio: %w", err)
	}
	slog.Debug("Client.Synthesize succeeded", "language", languageCode, "bytes", len(audio))
	return audio, nil
}
