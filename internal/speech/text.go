package speech

import (
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var (
	md = goldmark.New()

	bareURL   = regexp.MustCompile(`https?://\S+`)
	hashtag   = regexp.MustCompile(`#(\w+)`)
	mention   = regexp.MustCompile(`@(\w+)`)
	repeated  = regexp.MustCompile(`([.!?])+`)
	spaceRun  = regexp.MustCompile(`\s+`)
	spaceDot  = regexp.MustCompile(`\s+([,.!?;:])`)
	emojiLike = regexp.MustCompile(`[\x{1F000}-\x{1FAFF}\x{2600}-\x{27BF}\x{FE0F}]`)
)

// PlainText renders a script to the words a narrator should say. Scripts
// may carry light markdown; code is dropped and link targets are reduced
// to their text.
func PlainText(script string) string {
	src := []byte(script)
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.(type) {
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if s := inlineText(n, src); s != "" {
				blocks = append(blocks, terminate(s))
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return Clean(strings.Join(blocks, " "))
}

// Clean normalizes social text for speech: URLs and emoji go, hashtags
// and mentions keep their word, punctuation and whitespace collapse.
func Clean(s string) string {
	s = bareURL.ReplaceAllString(s, "")
	s = emojiLike.ReplaceAllString(s, "")
	s = hashtag.ReplaceAllString(s, "$1")
	s = mention.ReplaceAllString(s, "$1")
	s = strings.NewReplacer("&amp;", " and ", "&", " and ", "%", " percent").Replace(s)
	s = repeated.ReplaceAllString(s, "$1")
	s = spaceDot.ReplaceAllString(s, "$1")
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch c := c.(type) {
		case *ast.Text:
			b.Write(c.Segment.Value(src))
			if c.SoftLineBreak() || c.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(c.Value)
		case *ast.CodeSpan, *ast.RawHTML, *ast.Image:
			// not spoken
		case *ast.AutoLink:
			// not spoken
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return strings.TrimSpace(b.String())
}

// terminate ends a block with punctuation so blocks read as sentences.
func terminate(s string) string {
	switch s[len(s)-1] {
	case '.', '!', '?', ':', ';':
		return s
	}
	return s + "."
}
