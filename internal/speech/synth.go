package speech

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// SampleRate is the rate of the raw PCM the speech API returns.
const SampleRate = 24000

// ErrEmptySpeech is returned when the back-end answers with no audio.
var ErrEmptySpeech = errors.New("speech back-end returned no audio")

// SpeechAPI is the part of the OpenAI client the synthesizer uses.
type SpeechAPI interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// Voice selects how text is spoken.
type Voice struct {
	Model string
	Name  string
	Speed float64
}

// DefaultVoice returns the default voice.
func DefaultVoice() Voice {
	return Voice{Model: string(openai.TTSModel1), Name: string(openai.VoiceAlloy), Speed: 1.0}
}

// Synthesizer turns text into signed 16-bit mono PCM at SampleRate.
type Synthesizer struct {
	api   SpeechAPI
	voice Voice
}

// NewSynthesizer creates a synthesizer. Zero voice fields take defaults.
func NewSynthesizer(api SpeechAPI, voice Voice) *Synthesizer {
	def := DefaultVoice()
	if voice.Model == "" {
		voice.Model = def.Model
	}
	if voice.Name == "" {
		voice.Name = def.Name
	}
	if voice.Speed <= 0 {
		voice.Speed = def.Speed
	}
	return &Synthesizer{api: api, voice: voice}
}

// NewOpenAIClient builds the client for the speech and chat back-ends.
// An empty baseURL keeps the library default.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// Voice returns the configured voice.
func (s *Synthesizer) Voice() Voice { return s.voice }

// Synthesize requests speech for text.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	resp, err := s.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.voice.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice.Name),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          s.voice.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close() //nolint:errcheck

	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptySpeech
	}
	return data, nil
}
