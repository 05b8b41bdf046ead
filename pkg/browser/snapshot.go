package browser

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultSnapshotBytes bounds the sanitized HTML kept for a failure.
const DefaultSnapshotBytes = 64 * 1024

// PageSnapshot is a sanitized copy of the page taken when a step fails.
// Form values and challenge responses are never included.
type PageSnapshot struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	HTML      string    `json:"-"`
	Truncated bool      `json:"truncated"`
	TakenAt   time.Time `json:"taken_at"`
}

// Snapshot captures the current page, keeping at most maxBytes of HTML.
func (s *Session) Snapshot(maxBytes int) (*PageSnapshot, error) {
	raw, err := s.Page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	cleaned, title, truncated, err := SanitizeHTML(raw, maxBytes)
	if err != nil {
		return nil, err
	}

	return &PageSnapshot{
		URL:       s.Page.URL(),
		Title:     title,
		HTML:      cleaned,
		Truncated: truncated,
		TakenAt:   time.Now(),
	}, nil
}

// SanitizeHTML strips scripts, styles, comments and every attribute that can
// carry user data, then renders the remaining tree. Output longer than
// maxBytes is cut and reported as truncated.
func SanitizeHTML(raw string, maxBytes int) (cleaned, title string, truncated bool, err error) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", "", false, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title = findTitle(doc)
	prune(doc)

	var b strings.Builder
	if err := html.Render(&b, doc); err != nil {
		return "", "", false, fmt.Errorf("failed to render HTML: %w", err)
	}

	cleaned = b.String()
	if maxBytes <= 0 {
		maxBytes = DefaultSnapshotBytes
	}
	if len(cleaned) > maxBytes {
		n := maxBytes
		for n > 0 && !utf8.RuneStart(cleaned[n]) {
			n--
		}
		cleaned = cleaned[:n]
		truncated = true
	}
	return cleaned, title, truncated, nil
}

// prune removes noise and user data from n's subtree in place.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && droppedElements[strings.ToLower(c.Data)]:
			n.RemoveChild(c)
		case c.Type == html.ElementNode:
			c.Attr = keptAttributes(c.Attr)
			if strings.EqualFold(c.Data, "textarea") {
				// Hidden textareas hold challenge responses
				for gc := c.FirstChild; gc != nil; gc = c.FirstChild {
					c.RemoveChild(gc)
				}
			} else {
				prune(c)
			}
		}
		c = next
	}
}

var droppedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"embed":    true,
	"object":   true,
	"svg":      true,
	"template": true,
	"link":     true,
	"meta":     true,
}

// keptAttributes filters attrs down to the ones that help match anchors
// against the page. Values never survive.
func keptAttributes(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		switch {
		case key == "id", key == "class", key == "name", key == "type", key == "role",
			key == "href", key == "disabled", key == "hidden", key == "style",
			key == "aria-label", key == "aria-hidden":
			kept = append(kept, a)
		case strings.HasPrefix(key, "data-") && !strings.Contains(key, "token"):
			kept = append(kept, a)
		}
	}
	return kept
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			return strings.TrimSpace(n.FirstChild.Data)
		}
		return ""
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
