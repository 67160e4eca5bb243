package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

// WebsiteStore keeps scanned websites in memory.
type WebsiteStore struct {
	mu    sync.RWMutex
	sites map[string]storedSite
	seq   int
}

type storedSite struct {
	site seo.Website
	seq  int
}

// NewWebsiteStore creates an empty store.
func NewWebsiteStore() *WebsiteStore {
	return &WebsiteStore{sites: make(map[string]storedSite)}
}

// SaveWebsite inserts or replaces site by ID.
func (s *WebsiteStore) SaveWebsite(_ context.Context, site seo.Website) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.sites[site.ID] = storedSite{site: cloneWebsite(site), seq: s.seq}
	return nil
}

// GetWebsite returns seo.ErrNotFound for unknown ids.
func (s *WebsiteStore) GetWebsite(_ context.Context, id string) (seo.Website, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.sites[id]
	if !ok {
		return seo.Website{}, seo.ErrNotFound
	}
	return cloneWebsite(stored.site), nil
}

// ListWebsites returns the 1-based page of websites, newest first.
func (s *WebsiteStore) ListWebsites(_ context.Context, page, limit int) ([]seo.Website, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []seo.Website{}, nil
	}
	s.mu.RLock()
	all := make([]storedSite, 0, len(s.sites))
	for _, stored := range s.sites {
		all = append(all, stored)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if !a.site.CreatedAt.Equal(b.site.CreatedAt) {
			return a.site.CreatedAt.After(b.site.CreatedAt)
		}
		return a.seq > b.seq
	})
	start := (page - 1) * limit
	if start >= len(all) {
		return []seo.Website{}, nil
	}
	end := min(start+limit, len(all))
	out := make([]seo.Website, 0, end-start)
	for _, stored := range all[start:end] {
		out = append(out, cloneWebsite(stored.site))
	}
	return out, nil
}

func cloneWebsite(w seo.Website) seo.Website {
	pages := make([]seo.Page, len(w.Pages))
	for i, p := range w.Pages {
		p.Findings = append([]seo.Finding(nil), p.Findings...)
		pages[i] = p
	}
	w.Pages = pages
	return w
}
