// Package postgres persists scanned websites in Postgres.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

//go:embed schema.sql
var schemaSQL string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(context.Context) (pgx.Tx, error)
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// WebsiteStore implements seo.WebsiteStore. A website is stored across the
// websites, pages, page_contents and seo_logs tables with page and finding
// order preserved.
type WebsiteStore struct {
	pool pool
}

// NewWebsiteStore connects a pool using cfg.
func NewWebsiteStore(ctx context.Context, cfg Config) (*WebsiteStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &WebsiteStore{pool: p}, nil
}

// NewWebsiteStoreWithPool constructs a store from an existing pool.
func NewWebsiteStoreWithPool(p pool) (*WebsiteStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	return &WebsiteStore{pool: p}, nil
}

// EnsureSchema creates the tables if they do not exist.
func (s *WebsiteStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *WebsiteStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *WebsiteStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const (
	deleteWebsiteSQL = `DELETE FROM websites WHERE id = $1`
	insertWebsiteSQL = `INSERT INTO websites (id, url, seo_score, page_count, created_at) VALUES ($1, $2, $3, $4, $5)`
	insertPageSQL    = `INSERT INTO pages (id, website_id, position, url, rendering_time) VALUES ($1, $2, $3, $4, $5)`
	insertContentSQL = `INSERT INTO page_contents (page_id, meta, text) VALUES ($1, $2, $3)`
	insertLogSQL     = `INSERT INTO seo_logs (page_id, position, level, message, category, element) VALUES ($1, $2, $3, $4, $5, $6)`

	selectWebsiteSQL  = `SELECT id, url, seo_score, page_count, created_at FROM websites WHERE id = $1`
	selectWebsitesSQL = `SELECT id, url, seo_score, page_count, created_at FROM websites
ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	selectPagesSQL = `SELECT p.id, p.url, p.rendering_time, c.meta, c.text
FROM pages p JOIN page_contents c ON c.page_id = p.id
WHERE p.website_id = $1 ORDER BY p.position`
	selectLogsSQL = `SELECT l.page_id, l.level, l.message, l.category, l.element
FROM seo_logs l JOIN pages p ON p.id = l.page_id
WHERE p.website_id = $1 ORDER BY p.position, l.position`
)

// SaveWebsite replaces any stored website with the same ID in one transaction.
func (s *WebsiteStore) SaveWebsite(ctx context.Context, site seo.Website) (err error) {
	if site.ID == "" {
		return errors.New("website id is required")
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, deleteWebsiteSQL, site.ID); err != nil {
		return fmt.Errorf("delete website: %w", err)
	}
	if _, err = tx.Exec(ctx, insertWebsiteSQL, site.ID, site.URL, site.SEOScore, site.PageCount, site.CreatedAt); err != nil {
		return fmt.Errorf("insert website: %w", err)
	}
	for i, page := range site.Pages {
		if err = insertPage(ctx, tx, site.ID, i, page); err != nil {
			return err
		}
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertPage(ctx context.Context, tx pgx.Tx, websiteID string, position int, page seo.Page) error {
	if _, err := tx.Exec(ctx, insertPageSQL, page.ID, websiteID, position, page.URL, page.RenderingTime); err != nil {
		return fmt.Errorf("insert page %s: %w", page.URL, err)
	}
	meta, err := json.Marshal(page.Content.Meta)
	if err != nil {
		return fmt.Errorf("marshal page meta: %w", err)
	}
	if _, err := tx.Exec(ctx, insertContentSQL, page.ID, meta, page.Content.Text); err != nil {
		return fmt.Errorf("insert page content %s: %w", page.URL, err)
	}
	for j, f := range page.Findings {
		if _, err := tx.Exec(ctx, insertLogSQL, page.ID, j, string(f.Level), f.Message, f.Category, f.Element); err != nil {
			return fmt.Errorf("insert seo log %s: %w", page.URL, err)
		}
	}
	return nil
}

// GetWebsite loads one website with its pages and findings.
func (s *WebsiteStore) GetWebsite(ctx context.Context, id string) (seo.Website, error) {
	var site seo.Website
	err := s.pool.QueryRow(ctx, selectWebsiteSQL, id).
		Scan(&site.ID, &site.URL, &site.SEOScore, &site.PageCount, &site.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return seo.Website{}, seo.ErrNotFound
	}
	if err != nil {
		return seo.Website{}, fmt.Errorf("select website: %w", err)
	}
	if site.Pages, err = s.loadPages(ctx, site.ID); err != nil {
		return seo.Website{}, err
	}
	return site, nil
}

// ListWebsites returns the 1-based page of websites, newest first.
func (s *WebsiteStore) ListWebsites(ctx context.Context, page, limit int) ([]seo.Website, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []seo.Website{}, nil
	}
	rows, err := s.pool.Query(ctx, selectWebsitesSQL, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("select websites: %w", err)
	}
	sites, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (seo.Website, error) {
		var w seo.Website
		err := row.Scan(&w.ID, &w.URL, &w.SEOScore, &w.PageCount, &w.CreatedAt)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan websites: %w", err)
	}
	for i := range sites {
		if sites[i].Pages, err = s.loadPages(ctx, sites[i].ID); err != nil {
			return nil, err
		}
	}
	if sites == nil {
		sites = []seo.Website{}
	}
	return sites, nil
}

func (s *WebsiteStore) loadPages(ctx context.Context, websiteID string) ([]seo.Page, error) {
	rows, err := s.pool.Query(ctx, selectPagesSQL, websiteID)
	if err != nil {
		return nil, fmt.Errorf("select pages: %w", err)
	}
	pages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (seo.Page, error) {
		var (
			p    seo.Page
			meta []byte
		)
		if err := row.Scan(&p.ID, &p.URL, &p.RenderingTime, &meta, &p.Content.Text); err != nil {
			return p, err
		}
		if err := json.Unmarshal(meta, &p.Content.Meta); err != nil {
			return p, fmt.Errorf("decode page meta: %w", err)
		}
		p.Findings = []seo.Finding{}
		return p, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan pages: %w", err)
	}

	index := make(map[string]int, len(pages))
	for i, p := range pages {
		index[p.ID] = i
	}
	logRows, err := s.pool.Query(ctx, selectLogsSQL, websiteID)
	if err != nil {
		return nil, fmt.Errorf("select seo logs: %w", err)
	}
	defer logRows.Close()
	for logRows.Next() {
		var (
			pageID, level string
			f             seo.Finding
		)
		if err := logRows.Scan(&pageID, &level, &f.Message, &f.Category, &f.Element); err != nil {
			return nil, fmt.Errorf("scan seo log: %w", err)
		}
		f.Level = seo.Severity(level)
		if i, ok := index[pageID]; ok {
			pages[i].Findings = append(pages[i].Findings, f)
		}
	}
	if err := logRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seo logs: %w", err)
	}
	if pages == nil {
		pages = []seo.Page{}
	}
	return pages, nil
}
