// Package extract turns uploaded files and fetched web pages into plain text
// plus original-source metadata for the ingestion pipeline. The pipeline
// itself never sees file bytes or HTML.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

var (
	// ErrInvalidURL indicates a URL that is missing or not http(s).
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnreachable indicates the URL could not be fetched.
	ErrUnreachable = errors.New("unable to reach the provided URL")

	// ErrNoContent indicates no meaningful text was found.
	ErrNoContent = errors.New("no meaningful content found")
)

// minURLTextLength rejects pages that extract to nearly nothing.
const minURLTextLength = 50

// contentSelectors are tried in order to find the page's main content.
var contentSelectors = []string{
	"main",
	"article",
	".content",
	".main-content",
	".post-content",
	".entry-content",
	"#content",
	".container",
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	emailRE      = regexp.MustCompile(`\S+@\S+\.\S+`)
	linkRE       = regexp.MustCompile(`https?://\S+`)
)

// URLContent is the extraction result for one web page.
type URLContent struct {
	URL         string
	Title       string
	Description string
	Domain      string
	Text        string
}

// URLExtractor fetches web pages and extracts their readable text.
type URLExtractor struct {
	client *http.Client
	logger *zap.Logger
}

// NewURLExtractor creates a URL extractor with a 30-second fetch timeout.
func NewURLExtractor(logger *zap.Logger) *URLExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &URLExtractor{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

// Extract fetches rawURL and returns its readable text with page metadata.
func (e *URLExtractor) Extract(ctx context.Context, rawURL string) (*URLContent, error) {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; knowledged-bot/1.0)")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnreachable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	description, _ := doc.Find(`meta[name="description"]`).Attr("content")
	description = strings.TrimSpace(description)

	// Strip chrome before looking for content.
	doc.Find("script, style, nav, header, footer, aside").Remove()

	var mainContent string
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			mainContent = sel.Text()
			break
		}
	}
	if mainContent == "" {
		mainContent = doc.Find("body").Text()
	}

	text := cleanText(mainContent)
	if title != "" {
		text = "Title: " + title + "\n\n" + text
	}
	if description != "" {
		text = "Description: " + description + "\n\n" + text
	}

	if len(strings.TrimSpace(text)) < minURLTextLength {
		return nil, fmt.Errorf("%w: on the webpage", ErrNoContent)
	}

	e.logger.Debug("extracted url",
		zap.String("url", rawURL),
		zap.Int("text_length", len(text)),
	)

	return &URLContent{
		URL:         rawURL,
		Title:       title,
		Description: description,
		Domain:      parsed.Hostname(),
		Text:        text,
	}, nil
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return parsed, nil
}

// cleanText collapses whitespace and strips emails and bare links left over
// from page chrome.
func cleanText(text string) string {
	text = emailRE.ReplaceAllString(text, "")
	text = linkRE.ReplaceAllString(text, "")
	text = whitespaceRE.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
