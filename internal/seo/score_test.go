package seo

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeScore_NoFindingsIsPerfect(t *testing.T) {
	t.Parallel()

	require.InDelta(t, 100.0, ComputeScore(nil), 1e-9)
	require.InDelta(t, 100.0, ComputeScore([]Finding{}), 1e-9)
}

func TestComputeScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		levels []Severity
		want   float64
	}{
		{"all positive", []Severity{SeverityGreat, SeverityGood, SeverityOptimal, SeverityInfo}, 100},
		{"all critical clamps to zero", []Severity{SeverityCritical, SeverityCritical}, 0},
		{"half warning", []Severity{SeverityWarning, SeverityGreat}, 50},
		{"mixed", []Severity{SeverityCritical, SeverityGreat, SeverityGreat, SeverityError}, 50 - 12.5},
		{"error is not critical", []Severity{SeverityError, SeverityInfo}, 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			findings := make([]Finding, 0, len(tc.levels))
			for _, l := range tc.levels {
				findings = append(findings, Finding{Level: l})
			}
			require.InDelta(t, tc.want, ComputeScore(findings), 1e-9)
		})
	}
}

func TestComputeScore_Bounded(t *testing.T) {
	t.Parallel()

	for n := 0; n < 50; n++ {
		findings := make([]Finding, 0, n)
		for i := 0; i < n; i++ {
			findings = append(findings, Finding{Level: Severities[(i*3+n)%len(Severities)]})
		}
		score := ComputeScore(findings)
		require.GreaterOrEqual(t, score, 0.0)
		require.LessOrEqual(t, score, 100.0)
	}
}

func TestWebsiteDistribution_SumsToTotal(t *testing.T) {
	t.Parallel()

	pages := []Page{
		{ID: "a", Findings: []Finding{{Level: SeverityCritical}, {Level: SeverityInfo}, {Level: SeverityInfo}}},
		{ID: "b", Findings: []Finding{{Level: SeverityGreat}}},
	}
	site := NewWebsite("site", "https://example.com", pages, time.Unix(0, 0))

	dist := site.Distribution()
	require.Equal(t, 4, dist.Total())
	require.Equal(t, 2, dist[SeverityInfo])
	require.Equal(t, 0, dist[SeverityWarning])
	require.Len(t, dist, len(Severities))
	require.Equal(t, 2, site.PageCount)
	require.InDelta(t, ComputeScore(AllFindings(pages)), site.SEOScore, 1e-9)
}

func TestNewWebsite_EmptyPages(t *testing.T) {
	t.Parallel()

	site := NewWebsite("id", "https://example.com", nil, time.Unix(0, 0))
	require.NotNil(t, site.Pages)
	require.Zero(t, site.PageCount)
	require.InDelta(t, 100.0, site.SEOScore, 1e-9)
}

func TestLevelDistribution_JSON(t *testing.T) {
	t.Parallel()

	dist := Distribute([]Finding{{Level: SeverityWarning}})
	raw, err := json.Marshal(dist)
	require.NoError(t, err)
	require.JSONEq(t,
		`{"critical":0,"error":0,"warning":1,"info":0,"optimal":0,"good":0,"great":0}`,
		string(raw))

	var back LevelDistribution
	require.NoError(t, json.Unmarshal(raw, &back))
	require.Equal(t, dist, back)
}

func TestSeverityRankAndParse(t *testing.T) {
	t.Parallel()

	require.Less(t, SeverityCritical.Rank(), SeverityGreat.Rank())
	require.Equal(t, -1, Severity("bogus").Rank())

	s, err := ParseSeverity(" WARNING ")
	require.NoError(t, err)
	require.Equal(t, SeverityWarning, s)

	_, err = ParseSeverity("bogus")
	require.Error(t, err)
}
