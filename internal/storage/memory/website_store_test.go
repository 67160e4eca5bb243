package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/seo-scanner/internal/seo"
)

func site(id string, created time.Time) seo.Website {
	return seo.NewWebsite(id, "https://"+id+".test/", []seo.Page{{
		ID:       id + "-p1",
		URL:      "https://" + id + ".test/",
		Findings: []seo.Finding{{Level: seo.SeverityGood, Message: "ok", Category: seo.CategorySemantic, Element: "main"}},
	}}, created)
}

func TestWebsiteStoreSaveGet(t *testing.T) {
	t.Parallel()

	store := NewWebsiteStore()
	ctx := context.Background()
	original := site("a", time.Unix(10, 0))
	require.NoError(t, store.SaveWebsite(ctx, original))

	got, err := store.GetWebsite(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, original, got)

	got.Pages[0].Findings[0].Message = "mutated"
	again, err := store.GetWebsite(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, "ok", again.Pages[0].Findings[0].Message)

	_, err = store.GetWebsite(ctx, "missing")
	require.ErrorIs(t, err, seo.ErrNotFound)
}

func TestWebsiteStoreListPaginates(t *testing.T) {
	t.Parallel()

	store := NewWebsiteStore()
	ctx := context.Background()
	for i := range 5 {
		require.NoError(t, store.SaveWebsite(ctx, site(fmt.Sprintf("s%d", i), time.Unix(int64(i), 0))))
	}

	first, err := store.ListWebsites(ctx, 1, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"s4", "s3"}, ids(first))

	last, err := store.ListWebsites(ctx, 3, 2)
	require.NoError(t, err)
	require.Equal(t, []string{"s0"}, ids(last))

	beyond, err := store.ListWebsites(ctx, 9, 2)
	require.NoError(t, err)
	require.Empty(t, beyond)

	clamped, err := store.ListWebsites(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, clamped, 5)
}

func TestWebsiteStoreListTiesNewestSaveFirst(t *testing.T) {
	t.Parallel()

	store := NewWebsiteStore()
	ctx := context.Background()
	same := time.Unix(50, 0)
	require.NoError(t, store.SaveWebsite(ctx, site("first", same)))
	require.NoError(t, store.SaveWebsite(ctx, site("second", same)))

	got, err := store.ListWebsites(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"second", "first"}, ids(got))
}

func ids(sites []seo.Website) []string {
	out := make([]string, 0, len(sites))
	for _, s := range sites {
		out = append(out, s.ID)
	}
	return out
}
