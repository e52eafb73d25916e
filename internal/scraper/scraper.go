package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/dailybrief/internal/news"
)

// MaxContentRunes caps extracted article text.
const MaxContentRunes = 5000

// contentSelectors are tried in order; the first match wins.
var contentSelectors = []string{
	"article",
	`[role="main"]`,
	".post-content",
	".article-content",
	".entry-content",
	".content",
	"main",
	"#content",
}

// FetchArticleContent downloads url and returns its main text.
func FetchArticleContent(ctx context.Context, url, userAgent string, timeout time.Duration) (string, error) {
	doc, err := FetchDocument(ctx, url, userAgent, timeout)
	if err != nil {
		return "", err
	}
	return ExtractContent(doc), nil
}

// FetchDocument GETs url with the given user agent and parses the HTML.
func FetchDocument(ctx context.Context, url, userAgent string, timeout time.Duration) (*goquery.Document, error) {
	client := &http.Client{Timeout: timeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return doc, nil
}

// ExtractContent strips page chrome and joins the paragraphs of the main container.
func ExtractContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside").Remove()

	var container *goquery.Selection
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			container = sel
			break
		}
	}
	if container == nil {
		container = doc.Find("body")
	}

	var paragraphs []string
	container.Find("p").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	return news.Truncate(strings.Join(paragraphs, "\n\n"), MaxContentRunes)
}

// HTMLToText returns the visible text of an HTML fragment with collapsed whitespace.
func HTMLToText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
