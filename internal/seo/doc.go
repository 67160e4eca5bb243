// Package seo holds the domain model shared by the scan pipeline: findings,
// pages, websites, the scoring formula, and the collaborator interfaces the
// pipeline is wired against.
package seo
