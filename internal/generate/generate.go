// Package generate produces fresh trend batches from a chat-completion
// back-end, seeded with current headlines and scoped by interests.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/trendcast/internal/trend"
	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultPersona is the narrator voice scripts are written for.
const DefaultPersona = "an upbeat news host who explains what people online are talking about in plain, friendly language"

// ChatAPI is the part of the OpenAI client the generator uses.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config contains generator settings.
type Config struct {
	Model       string
	Persona     string
	Count       int     // items per batch
	Headlines   int     // headlines offered as grounding
	Temperature float32 // sampling temperature
}

// DefaultConfig returns the default generator configuration.
func DefaultConfig() Config {
	return Config{
		Model:       openai.GPT4oMini,
		Persona:     DefaultPersona,
		Count:       6,
		Headlines:   20,
		Temperature: 0.8,
	}
}

// Generator creates batches. It satisfies fetcher.Generator.
type Generator struct {
	chat      ChatAPI
	headlines HeadlineSource
	cfg       Config
	logger    *log.Logger
	newID     func() string
}

// Option configures a Generator.
type Option func(*Generator)

// WithHeadlines seeds prompts with current headlines.
func WithHeadlines(h HeadlineSource) Option {
	return func(g *Generator) { g.headlines = h }
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(g *Generator) { g.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New creates a generator over chat.
func New(chat ChatAPI, opts ...Option) *Generator {
	g := &Generator{
		chat:   chat,
		cfg:    DefaultConfig(),
		logger: log.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the back-end for a batch about interests. A response that
// does not parse is returned as a *ParseError.
func (g *Generator) Generate(ctx context.Context, interests []string) ([]trend.Item, error) {
	var headlines []Headline
	if g.headlines != nil {
		h, err := g.headlines.Headlines(ctx)
		if err != nil {
			// generation still works without grounding
			g.logger.Warn("Could not load headlines", "err", err)
		}
		headlines = h
	}

	resp, err := g.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.systemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: g.userPrompt(interests, headlines)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ParseError{Reason: "no choices"}
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonLength {
		g.logger.Warn("Generation truncated", "model", resp.Model, "tokens", resp.Usage.CompletionTokens)
	}

	items, err := Parse([]byte(resp.Choices[0].Message.Content))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			g.logger.Warn("Discarding malformed generation", "reason", perr.Reason)
		}
		return nil, err
	}

	for i := range items {
		items[i].ID = g.newID()
	}
	g.logger.Info("Generated batch", "items", len(items), "headlines", len(headlines), "interests", strings.Join(interests, ","))
	return items, nil
}

func (g *Generator) systemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You write short spoken segments for %s.\n", g.cfg.Persona)
	b.WriteString("Each segment covers one trending topic and is read aloud, so write for the ear: ")
	b.WriteString("no markdown, no URLs, no emoji, about 60 to 90 words.\n")
	b.WriteString("Reply with a JSON object of the form ")
	b.WriteString(`{"items":[{"topic":"one or two word label","title":"headline","script":"narration",`)
	b.WriteString(`"imagePrompt":"one sentence describing an illustration",`)
	b.WriteString(`"sources":[{"author":"name","handle":"@handle","text":"short quote","engagement":"12K likes"}]}]}` + "\n")
	fmt.Fprintf(&b, "Give at most %d sources per item. Every item needs a title and a script.", trend.MaxSources)
	return b.String()
}

func (g *Generator) userPrompt(interests []string, headlines []Headline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d segments about what is trending right now.\n", g.cfg.Count)
	if len(interests) > 0 {
		fmt.Fprintf(&b, "Only cover these interests: %s.\n", strings.Join(interests, ", "))
	} else {
		b.WriteString("Cover a broad mix of topics.\n")
	}

	if len(headlines) > 0 {
		b.WriteString("\nCurrent headlines:\n")
		for i, h := range headlines {
			if i >= g.cfg.Headlines {
				break
			}
			fmt.Fprintf(&b, "- %s", h.Title)
			if h.Source != "" {
				fmt.Fprintf(&b, " (%s)", h.Source)
			}
			b.WriteByte('\n')
		}
	}
	return b.String()
}
