package html

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/normalisers/markdown"
	"github.com/custodia-labs/cliniq/internal/normalisers/plaintext"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML notes.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Format normaliser, higher than plaintext
}

// Normalise converts an HTML note to plain text.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawNote) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content, err := plaintext.DecodeText(raw.Content)
	if err != nil {
		return nil, err
	}

	title := extractTitle(content)
	if title == "" {
		title = raw.Name()
	}

	md, err := htmltomarkdown.ConvertString(removeNonContent(content))
	if err != nil {
		return nil, fmt.Errorf("%w: converting html: %v", domain.ErrInvalidInput, err)
	}

	return &driven.NormaliseResult{
		Text:   markdown.Strip(md),
		Title:  title,
		Format: "html",
	}, nil
}

// Pre-compiled regular expressions for HTML parsing performance.
var (
	titleTag     = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptTag    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleTag     = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	noscriptTag  = regexp.MustCompile(`(?is)<noscript[^>]*>.*?</noscript>`)
	headTag      = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	svgTag       = regexp.MustCompile(`(?is)<svg[^>]*>.*?</svg>`)
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)
)

// extractTitle returns the decoded contents of the <title> tag.
func extractTitle(content string) string {
	matches := titleTag.FindStringSubmatch(content)
	if len(matches) < 2 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(matches[1]))
}

// removeNonContent drops elements that never carry note text.
func removeNonContent(content string) string {
	content = scriptTag.ReplaceAllString(content, "")
	content = styleTag.ReplaceAllString(content, "")
	content = noscriptTag.ReplaceAllString(content, "")
	content = headTag.ReplaceAllString(content, "")
	content = svgTag.ReplaceAllString(content, "")
	return htmlComments.ReplaceAllString(content, "")
}
