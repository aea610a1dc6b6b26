package generate

import (
	"testing"

	"github.com/dgnsrekt/trendcast/internal/trend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	items, err := Parse([]byte(`{"items":[
		{"topic":"AI","title":"New model","script":" A new model shipped. ","imagePrompt":"robot",
		 "sources":[{"author":"a","text":"1"},{"author":"b","text":"2"},{"author":"c","text":"3"},
		            {"author":"d","text":"4"},{"author":"e","text":"5"},{"author":"f","text":"6"}]},
		{"topic":"sports","title":"Final","content":"The final went to penalties."}
	]}`))
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "A new model shipped.", items[0].Script)
	assert.Equal(t, "robot", items[0].ImagePrompt)
	assert.Len(t, items[0].Sources, trend.MaxSources)
	assert.Equal(t, "The final went to penalties.", items[1].SpeechText())
	assert.Empty(t, items[0].ID)
}

func TestParseAcceptsFencedArray(t *testing.T) {
	items, err := Parse([]byte("```json\n[{\"topic\":\"tech\",\"title\":\"t\",\"script\":\"s\"}]\n```"))
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: "  "},
		{name: "prose", input: "Sure! Here are some topics."},
		{name: "broken json", input: `{"items":[{"title":`},
		{name: "no items", input: `{"items":[]}`},
		{name: "no text", input: `{"items":[{"topic":"ai","title":"t"}]}`},
		{name: "no title", input: `{"items":[{"topic":"ai","script":"s"}]}`},
		{name: "one bad item fails all", input: `{"items":[{"title":"ok","script":"s"},{"title":"bad"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := Parse([]byte(tt.input))
			assert.Nil(t, items)

			var perr *ParseError
			require.ErrorAs(t, err, &perr)
			assert.NotEmpty(t, perr.Reason)
		})
	}
}
