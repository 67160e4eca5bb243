package sitegraph

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var skippedExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {}, ".ico": {},
	".pdf": {}, ".zip": {}, ".gz": {}, ".rar": {}, ".mp3": {}, ".mp4": {}, ".avi": {},
	".css": {}, ".js": {}, ".xml": {}, ".json": {}, ".woff": {}, ".woff2": {}, ".ttf": {},
	".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
}

// NormalizeURL canonicalizes an absolute http(s) URL for deduplication.
// It lowercases scheme and host, drops default ports and the fragment, sorts
// the query and strips the trailing slash from non-root paths.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Host == "" {
		return "", errors.New("url has no host")
	}
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	if u.Path == "" {
		u.Path = "/"
	}
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
	}
	u.RawPath = ""

	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}
	u.ForceQuery = false
	return u.String(), nil
}

// sameHost reports whether candidate is served by the seed's host.
func sameHost(seed, candidate *url.URL) bool {
	return strings.EqualFold(seed.Hostname(), candidate.Hostname())
}

// wwwTwin returns host with its "www." prefix toggled.
func wwwTwin(host string) string {
	if trimmed, ok := strings.CutPrefix(host, "www."); ok {
		return trimmed
	}
	return "www." + host
}

// looksLikePage filters out links to static assets and downloads.
func looksLikePage(u *url.URL) bool {
	ext := strings.ToLower(path.Ext(u.Path))
	_, skip := skippedExtensions[ext]
	return !skip
}
