package unfurl

import (
	"drawsync-server/assets"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const (
	fetchTimeout = 10 * time.Second
	userAgent    = "Mozilla/5.0 (compatible; DrawsyncBot/1.0)"
)

// Metadata is the unfurled description of a page.
type Metadata struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Favicon     string `json:"favicon"`
}

var (
	titlePattern           = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)
	ogTitlePattern         = regexp.MustCompile(`(?i)<meta[^>]*property=["']og:title["'][^>]*content=["']([^"']+)["'][^>]*>`)
	ogDescriptionPattern   = regexp.MustCompile(`(?i)<meta[^>]*property=["']og:description["'][^>]*content=["']([^"']+)["'][^>]*>`)
	ogImagePattern         = regexp.MustCompile(`(?i)<meta[^>]*property=["']og:image["'][^>]*content=["']([^"']+)["'][^>]*>`)
	metaDescriptionPattern = regexp.MustCompile(`(?i)<meta[^>]*name=["']description["'][^>]*content=["']([^"']+)["'][^>]*>`)
	faviconPattern         = regexp.MustCompile(`(?i)<link[^>]*rel=["'][^"']*icon[^"']*["'][^>]*href=["']([^"']+)["'][^>]*>`)
)

type errorResponse struct {
	Error string `json:"error"`
}

// HandleUnfurl fetches a page and extracts its link-preview metadata.
// Results are cached for the cache's TTL. client may be nil, in which case a
// default client with the fetch timeout is used.
func HandleUnfurl(cache *assets.ResponseCache, client *http.Client) http.HandlerFunc {
	if client == nil {
		client = &http.Client{Timeout: fetchTimeout}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "Missing url parameter"})
			return
		}

		parsed, err := url.Parse(target)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, errorResponse{Error: "Invalid URL"})
			return
		}

		if entry, ok := cache.Get(target); ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write(entry.Data)
			return
		}

		metadata, err := fetchMetadata(r, client, target)
		if err != nil {
			logrus.WithField("url", target).WithError(err).Error("Failed to unfurl URL")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, errorResponse{Error: "Failed to unfurl URL"})
			return
		}

		buf, err := json.Marshal(metadata)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, errorResponse{Error: "Failed to unfurl URL"})
			return
		}

		headers := http.Header{}
		headers.Set("Content-Type", "application/json")
		cache.Put(target, buf, headers)

		w.Header().Set("Content-Type", "application/json")
		w.Write(buf)
	}
}

func fetchMetadata(r *http.Request, client *http.Client, target string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, target)
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	metadata := extractMetadata(string(html), target)
	return &metadata, nil
}

// extractMetadata pulls title, description, preview image and favicon out of
// a page with regexes, preferring Open Graph tags where present.
func extractMetadata(html, pageURL string) Metadata {
	metadata := Metadata{URL: pageURL}

	if m := titlePattern.FindStringSubmatch(html); m != nil {
		metadata.Title = strings.TrimSpace(m[1])
	}
	if m := ogTitlePattern.FindStringSubmatch(html); m != nil {
		metadata.Title = strings.TrimSpace(m[1])
	}
	if m := ogDescriptionPattern.FindStringSubmatch(html); m != nil {
		metadata.Description = strings.TrimSpace(m[1])
	}
	if m := ogImagePattern.FindStringSubmatch(html); m != nil {
		metadata.Image = resolveURL(strings.TrimSpace(m[1]), pageURL)
	}
	if metadata.Description == "" {
		if m := metaDescriptionPattern.FindStringSubmatch(html); m != nil {
			metadata.Description = strings.TrimSpace(m[1])
		}
	}
	if m := faviconPattern.FindStringSubmatch(html); m != nil {
		metadata.Favicon = resolveURL(strings.TrimSpace(m[1]), pageURL)
	}
	if metadata.Favicon == "" {
		if parsed, err := url.Parse(pageURL); err == nil {
			metadata.Favicon = parsed.Scheme + "://" + parsed.Host + "/favicon.ico"
		}
	}

	return metadata
}

func resolveURL(relative, base string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return relative
	}
	resolved, err := baseURL.Parse(relative)
	if err != nil {
		return relative
	}
	return resolved.String()
}
