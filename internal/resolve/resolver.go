// Package resolve turns job-board apply URLs into official application targets.
//
// Aggregator boards are never submitted against. A board URL either redirects
// to the employer's site, links to it from the page, or stays unresolved.
package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/apply-agent/internal/fetch"
	"github.com/jonathan/apply-agent/internal/logger"
	"github.com/jonathan/apply-agent/internal/types"
	"golang.org/x/sync/errgroup"
)

// Reason explains how a resolution was reached.
type Reason string

const (
	ReasonMissingApplyURL       Reason = "missing_apply_url"
	ReasonTrustedSource         Reason = "trusted_source"
	ReasonAlreadyOfficial       Reason = "already_official"
	ReasonRedirectedToOfficial  Reason = "redirected_to_official"
	ReasonChallengeBlocked      Reason = "board_challenge_blocked"
	ReasonExtractedExternalLink Reason = "extracted_external_apply_link"
	ReasonNoExternalLink        Reason = "no_external_apply_link_found"
	ReasonResolutionError       Reason = "resolution_error"
)

// DefaultTimeout bounds the board page fetch.
const DefaultTimeout = 20 * time.Second

// maxScanBytes caps how much of a board page is scanned.
const maxScanBytes = 1_500_000

// DefaultBoardDomains are aggregator domains that never accept submissions.
var DefaultBoardDomains = []string{
	"remotive.com",
	"remoteok.com",
	"arbeitnow.com",
	"himalayas.app",
	"indeed.com",
	"glassdoor.com",
	"ziprecruiter.com",
	"simplyhired.com",
	"weworkremotely.com",
}

// DefaultTrustedSources are scraper sources whose URLs are submitted as-is.
var DefaultTrustedSources = []string{"linkedin", "greenhouse", "lever"}

var challengeMarkers = []string{
	"just a moment",
	"enable javascript and cookies to continue",
	"cf-chl",
	"challenge-platform",
}

// Resolution is the outcome of resolving one apply URL.
type Resolution struct {
	ResolvedURL string   `json:"resolved_url,omitempty"`
	Reason      Reason   `json:"reason"`
	BoardSource bool     `json:"board_source"`
	Warnings    []string `json:"warnings"`
}

// Resolved reports whether an official target was found.
func (r Resolution) Resolved() bool {
	return r.ResolvedURL != ""
}

// Details returns the snapshot stored on the job log row.
func (r Resolution) Details() map[string]any {
	var resolved any
	if r.ResolvedURL != "" {
		resolved = r.ResolvedURL
	}
	warnings := r.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return map[string]any{
		"resolved_url": resolved,
		"reason":       string(r.Reason),
		"board_source": r.BoardSource,
		"warnings":     warnings,
	}
}

func (r Resolution) clone() Resolution {
	if r.Warnings != nil {
		r.Warnings = append([]string(nil), r.Warnings...)
	}
	return r
}

// Config tunes a Resolver. Zero values use the defaults.
type Config struct {
	BoardDomains   []string      `json:"board_domains,omitempty"`
	TrustedSources []string      `json:"trusted_sources,omitempty"`
	CacheTTL       time.Duration `json:"cache_ttl,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty"`
}

// Resolver resolves apply URLs, caching every outcome.
type Resolver struct {
	getter  fetch.Getter
	cache   Cache
	boards  []string
	trusted map[string]struct{}
	ttl     time.Duration
	timeout time.Duration
}

// New creates a Resolver. A nil cache uses a MemoryCache.
func New(getter fetch.Getter, cache Cache, cfg Config) *Resolver {
	if cache == nil {
		cache = NewMemoryCache()
	}
	boards := cfg.BoardDomains
	if len(boards) == 0 {
		boards = DefaultBoardDomains
	}
	trustedList := cfg.TrustedSources
	if len(trustedList) == 0 {
		trustedList = DefaultTrustedSources
	}
	trusted := make(map[string]struct{}, len(trustedList)+len(fetch.KnownPlatforms()))
	for _, s := range trustedList {
		trusted[strings.ToLower(s)] = struct{}{}
	}
	for _, p := range fetch.KnownPlatforms() {
		trusted[string(p)] = struct{}{}
	}
	r := &Resolver{
		getter:  getter,
		cache:   cache,
		trusted: trusted,
		ttl:     cfg.CacheTTL,
		timeout: cfg.Timeout,
	}
	for _, d := range boards {
		r.boards = append(r.boards, strings.TrimPrefix(strings.ToLower(d), "www."))
	}
	if r.ttl <= 0 {
		r.ttl = DefaultCacheTTL
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	return r
}

// IsBoardDomain reports whether rawURL is hosted on an aggregator or one of its subdomains.
func (r *Resolver) IsBoardDomain(rawURL string) bool {
	host := types.HostOf(rawURL)
	if host == "" {
		return false
	}
	for _, d := range r.boards {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// IsTrustedSource reports whether URLs from source are submitted without resolution.
func (r *Resolver) IsTrustedSource(source string) bool {
	_, ok := r.trusted[strings.ToLower(strings.TrimSpace(source))]
	return ok
}

// IsOfficialSubmissionTarget reports whether a submission may be made against rawURL.
func (r *Resolver) IsOfficialSubmissionTarget(rawURL, source string) bool {
	if types.HostOf(rawURL) == "" {
		return false
	}
	if r.IsTrustedSource(source) {
		return true
	}
	return !r.IsBoardDomain(rawURL)
}

// Resolve finds the official apply URL for target. It never returns an error;
// failures are reported through the Reason and Warnings.
func (r *Resolver) Resolve(ctx context.Context, target, source string) Resolution {
	target = strings.TrimSpace(target)
	src := strings.ToLower(strings.TrimSpace(source))
	if target == "" {
		return Resolution{
			Reason:   ReasonMissingApplyURL,
			Warnings: []string{"Job has no apply URL."},
		}
	}

	log := logger.FromContext(ctx).With(logger.String("url", target), logger.String("source", src))
	key := CacheKey(src, target)
	if cached, ok := r.cache.Get(ctx, key); ok {
		log.Debug("Apply target resolution cache hit", logger.String("reason", string(cached.Reason)))
		return cached
	}

	result := r.resolve(ctx, target, src)
	r.cache.Set(ctx, key, result, r.ttl)
	log.Info("Resolved apply target",
		logger.String("reason", string(result.Reason)),
		logger.String("resolved_url", result.ResolvedURL))
	return result
}

func (r *Resolver) resolve(ctx context.Context, target, src string) Resolution {
	if r.IsTrustedSource(src) {
		return Resolution{ResolvedURL: target, Reason: ReasonTrustedSource, Warnings: []string{}}
	}
	if !r.IsBoardDomain(target) {
		return Resolution{ResolvedURL: target, Reason: ReasonAlreadyOfficial, Warnings: []string{}}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	resp, err := r.getter.Get(fetchCtx, target)
	if err != nil {
		return Resolution{
			Reason:      ReasonResolutionError,
			BoardSource: true,
			Warnings:    []string{fmt.Sprintf("URL resolution failed: %v", err)},
		}
	}

	finalURL := resp.FinalURL
	if finalURL != "" && !r.IsBoardDomain(finalURL) {
		return Resolution{ResolvedURL: finalURL, Reason: ReasonRedirectedToOfficial, BoardSource: true, Warnings: []string{}}
	}

	body := resp.HTML
	if len(body) > maxScanBytes {
		body = body[:maxScanBytes]
	}
	lower := strings.ToLower(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(lower, marker) {
			return Resolution{
				Reason:      ReasonChallengeBlocked,
				BoardSource: true,
				Warnings:    []string{"Board page blocked by anti-bot challenge."},
			}
		}
	}

	base := finalURL
	if base == "" {
		base = target
	}
	if candidates := r.ExtractApplyLinks(body, base); len(candidates) > 0 {
		return Resolution{ResolvedURL: candidates[0], Reason: ReasonExtractedExternalLink, BoardSource: true, Warnings: []string{}}
	}
	return Resolution{Reason: ReasonNoExternalLink, BoardSource: true, Warnings: []string{}}
}

// Target is one URL to resolve.
type Target struct {
	URL    string
	Source string
}

// ResolveAll resolves targets with at most concurrency fetches in flight.
// Results are returned in target order.
func (r *Resolver) ResolveAll(ctx context.Context, targets []Target, concurrency int) []Resolution {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]Resolution, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = r.Resolve(gctx, t.URL, t.Source)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
