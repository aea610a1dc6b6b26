package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	openai "github.com/sashabaranov/go-openai"
)

type fakeChat struct {
	req     openai.ChatCompletionRequest
	content string
	err     error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.content},
		}},
	}, nil
}

type staticHeadlines struct {
	headlines []Headline
	err       error
}

func (s staticHeadlines) Headlines(context.Context) ([]Headline, error) {
	return s.headlines, s.err
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestGenerate(t *testing.T) {
	chat := &fakeChat{content: `{"items":[{"topic":"ai","title":"t1","script":"s1"},{"topic":"ai","title":"t2","script":"s2"}]}`}
	ids := 0
	g := New(chat,
		WithLogger(quietLogger()),
		WithHeadlines(staticHeadlines{headlines: []Headline{{Title: "Chips rally", Source: "Wire"}}}),
	)
	g.newID = func() string { ids++; return fmt.Sprintf("id-%d", ids) }

	items, err := g.Generate(context.Background(), []string{"ai", "markets"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "id-1", items[0].ID)
	assert.Equal(t, "id-2", items[1].ID)

	require.Len(t, chat.req.Messages, 2)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, chat.req.ResponseFormat.Type)
	assert.Contains(t, chat.req.Messages[0].Content, DefaultPersona)
	assert.Contains(t, chat.req.Messages[1].Content, "ai, markets")
	assert.Contains(t, chat.req.Messages[1].Content, "Chips rally (Wire)")
}

func TestGenerateAssignsUUIDs(t *testing.T) {
	chat := &fakeChat{content: `{"items":[{"title":"t","script":"s"}]}`}
	items, err := New(chat, WithLogger(quietLogger())).Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, items[0].ID, 36)
}

func TestGenerateWithoutHeadlines(t *testing.T) {
	chat := &fakeChat{content: `{"items":[{"title":"t","script":"s"}]}`}
	g := New(chat, WithLogger(quietLogger()), WithHeadlines(staticHeadlines{err: errors.New("offline")}))

	_, err := g.Generate(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, chat.req.Messages[1].Content, "broad mix")
	assert.NotContains(t, chat.req.Messages[1].Content, "Current headlines")
}

func TestGenerateMalformed(t *testing.T) {
	g := New(&fakeChat{content: "I cannot help with that."}, WithLogger(quietLogger()))

	_, err := g.Generate(context.Background(), nil)
	var perr *ParseError
	assert.ErrorAs(t, err, &perr)
}

func TestGenerateTransportError(t *testing.T) {
	g := New(&fakeChat{err: errors.New("connection refused")}, WithLogger(quietLogger()))

	_, err := g.Generate(context.Background(), nil)
	require.Error(t, err)
	var perr *ParseError
	assert.False(t, errors.As(err, &perr))
}

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Wire</title>
<item><title>Older story</title><link>https://example.com/1</link><pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>
<item><title>Newer story</title><link>https://example.com/2</link><pubDate>Tue, 03 Jan 2006 15:04:05 GMT</pubDate><description>details</description></item>
<item><title>Third story</title><link>https://example.com/3</link></item>
</channel></rss>`

func TestFeedHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, rssFixture)
	}))
	defer srv.Close()

	src := NewFeedHeadlines([]string{srv.URL, srv.URL + "/missing-but-same-feed"}, 2)
	headlines, err := src.Headlines(context.Background())
	require.NoError(t, err)
	require.Len(t, headlines, 4)

	assert.Equal(t, "Newer story", headlines[0].Title)
	assert.Equal(t, "Wire", headlines[0].Source)
	assert.Equal(t, "details", headlines[0].Summary)
}

func TestFeedHeadlinesAllFail(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewFeedHeadlines([]string{srv.URL}, 5).Headlines(context.Background())
	assert.Error(t, err)
}
