package speech

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   string
	}{
		{name: "plain", script: "Markets rallied today", want: "Markets rallied today."},
		{name: "emphasis", script: "This is **huge** news!", want: "This is huge news!"},
		{name: "link text kept", script: "Read [the thread](https://x.com/a/1) now.", want: "Read the thread now."},
		{name: "code dropped", script: "Run `rm -rf` carefully.\n\n```\ncode\n```", want: "Run carefully."},
		{name: "headings and paragraphs", script: "# Big news\n\nSomething happened", want: "Big news. Something happened."},
		{name: "list items", script: "- first\n- second", want: "first. second."},
		{name: "empty", script: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlainText(tt.script); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.script, got, tt.want)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Big day for #AI and @openai", "Big day for AI and openai"},
		{"see https://t.co/abc for more", "see for more"},
		{"Wow!!! Really???", "Wow! Really?"},
		{"up 5% today", "up 5 percent today"},
		{"rockets 🚀 launch", "rockets launch"},
		{"word ,spaced", "word,spaced"},
	}

	for _, tt := range tests {
		if got := Clean(tt.in); got != tt.want {
			t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
