package analysis

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/iankiku/agentsauthority-chatbot-sub003/types"
)

// SiteProfile is what the brand's own site says about it
type SiteProfile struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	SiteName    string   `json:"siteName"`
	Keywords    []string `json:"keywords,omitempty"`
	Headings    []string `json:"headings,omitempty"`
}

// SiteInspector reads a brand's site
type SiteInspector interface {
	Inspect(ctx context.Context, url string) (SiteProfile, error)
}

// HTMLInspector implements SiteInspector by parsing the landing page
type HTMLInspector struct {
	client *http.Client
}

var _ SiteInspector = (*HTMLInspector)(nil)

// NewHTMLInspector wires an HTTP client; a nil client gets a 20s timeout
func NewHTMLInspector(client *http.Client) *HTMLInspector {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLInspector{client: client}
}

// Inspect fetches url and extracts title, meta description, keywords,
// og:site_name and the top-level headings
func (h *HTMLInspector) Inspect(ctx context.Context, url string) (SiteProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return SiteProfile{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "BrandVisibilityBot/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return SiteProfile{}, &types.ExternalServiceError{
			Service: "site",
			Message: fmt.Sprintf("could not reach %s", url),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return SiteProfile{}, &types.ExternalServiceError{
			Service: "site",
			Message: fmt.Sprintf("%s returned %s", url, resp.Status),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return SiteProfile{}, fmt.Errorf("parse document: %w", err)
	}

	return extractProfile(doc, url), nil
}

func extractProfile(doc *goquery.Document, url string) SiteProfile {
	profile := SiteProfile{
		URL:   url,
		Title: cleanText(doc.Find("head > title").First().Text()),
	}

	profile.Description = metaContent(doc, `meta[name="description"]`)
	if profile.Description == "" {
		profile.Description = metaContent(doc, `meta[property="og:description"]`)
	}
	profile.SiteName = metaContent(doc, `meta[property="og:site_name"]`)

	if keywords := metaContent(doc, `meta[name="keywords"]`); keywords != "" {
		for _, kw := range strings.Split(keywords, ",") {
			if kw = strings.TrimSpace(kw); kw != "" {
				profile.Keywords = append(profile.Keywords, kw)
			}
		}
	}

	doc.Find("h1, h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := cleanText(s.Text()); text != "" {
			profile.Headings = append(profile.Headings, text)
		}
		return len(profile.Headings) < 5
	})

	return profile
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return cleanText(content)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
