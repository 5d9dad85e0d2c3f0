package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"roadtrip-server/config"
	"roadtrip-server/models"
	apperrors "roadtrip-server/utils/errors"
	"roadtrip-server/utils/geo"
)

// OrchestratorDeps are the collaborators a DiscoveryOrchestrator is built
// from. Local and Remote may be nil; a missing source behaves like one that
// always fails. Cache may be nil to disable caching.
type OrchestratorDeps struct {
	Local  CandidateSource
	Remote CandidateSource
	Rules  *ExclusionRuleSet
	Ranker *RankingEngine
	Cache  ResultCache
	Logger *slog.Logger
}

// DiscoveryOrchestrator runs a discovery request through the configured
// strategy: query sources, filter, dedupe, rank, truncate. It is the error
// boundary for everything below it: only invalid input and cancellation are
// returned as errors.
type DiscoveryOrchestrator struct {
	cfg    config.DiscoveryConfig
	local  CandidateSource
	remote CandidateSource
	rules  *ExclusionRuleSet
	ranker *RankingEngine
	cache  ResultCache
	logger *slog.Logger
	now    func() time.Time
}

func NewDiscoveryOrchestrator(cfg config.DiscoveryConfig, deps OrchestratorDeps) *DiscoveryOrchestrator {
	ranker := deps.Ranker
	if ranker == nil {
		ranker = mustDefaultRanker()
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &DiscoveryOrchestrator{
		cfg:    cfg,
		local:  deps.Local,
		remote: deps.Remote,
		rules:  deps.Rules,
		ranker: ranker,
		cache:  deps.Cache,
		logger: log,
		now:    time.Now,
	}
}

// Ranker exposes the ranking engine so feedback (likes, dislikes) reaches the
// session preferences.
func (o *DiscoveryOrchestrator) Ranker() *RankingEngine {
	return o.ranker
}

// DiscoverAt is Discover for callers that hold raw coordinates.
func (o *DiscoveryOrchestrator) DiscoverAt(ctx context.Context, lat, lon float64, category string, strategy models.Strategy, maxResults int) (*models.DiscoveryResult, error) {
	return o.Discover(ctx, models.DiscoveryRequest{
		Origin:     models.GeoPoint{Latitude: lat, Longitude: lon},
		Category:   category,
		Strategy:   strategy,
		MaxResults: maxResults,
	})
}

// sourceOutcome is what one source call produced.
type sourceOutcome struct {
	pois []models.POI
	err  error
}

func (s sourceOutcome) ok() bool { return s.err == nil }

// attempt is the result of running a strategy once at a fixed radius.
type attempt struct {
	pois         []models.POI
	used         models.Strategy
	fallbackUsed bool
	excluded     int
	answered     bool // at least one source returned without error
}

// Discover answers req. Source failures, timeouts and empty results are
// absorbed into the result (FallbackUsed, empty POIs).
func (o *DiscoveryOrchestrator) Discover(ctx context.Context, req models.DiscoveryRequest) (*models.DiscoveryResult, error) {
	start := o.now()

	strategy, radius, err := o.validate(req)
	if err != nil {
		return nil, err
	}
	category := NormalizeCategory(req.Category)

	// Personalized rankings are not shared through the cache.
	useCache := o.cache != nil && req.Preferences == nil
	key := NewCacheKey(req.Origin, category, strategy, o.cfg.CacheGridDegrees)
	key.Preferences = o.ranker.SessionPreferences().Generation()
	if useCache {
		if result, ok := o.fromCache(ctx, key, strategy, req.MaxResults); ok {
			o.logger.Info("discover",
				"category", category,
				"strategy", strategy,
				"results", len(result.POIs),
				"cached", true,
			)
			return result, nil
		}
	}

	pref := req.Preferences
	if pref == nil {
		pref = o.ranker.SessionPreferences()
	}

	result := &models.DiscoveryResult{
		POIs:              []models.POI{},
		Category:          category,
		StrategyRequested: strategy,
		StrategyUsed:      strategy,
	}
	answered := false

	for {
		q := SourceQuery{
			Origin:       req.Origin,
			Category:     category,
			RadiusMeters: radius,
			MaxResults:   max(req.MaxResults, o.cfg.CandidatePoolSize),
		}
		a := o.runStrategy(ctx, strategy, q, pref)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Each pass re-queries the wider area, so only the last one counts.
		result.ExcludedCount = a.excluded
		result.FallbackUsed = result.FallbackUsed || a.fallbackUsed
		result.StrategyUsed = a.used
		result.RadiusMeters = radius
		answered = answered || a.answered

		if len(a.pois) > 0 {
			result.POIs = a.pois
			break
		}
		if strategy == models.StrategyLocalOnly || result.Expansions >= o.cfg.MaxExpansions || radius >= o.cfg.MaxRadius {
			break
		}
		radius = math.Min(radius*o.cfg.RadiusGrowth, o.cfg.MaxRadius)
		result.Expansions++
		o.logger.Debug("no candidates, expanding radius",
			"category", category,
			"radius", radius,
			"expansion", result.Expansions,
		)
	}

	if len(result.POIs) > req.MaxResults {
		result.POIs = result.POIs[:req.MaxResults]
	}
	result.ResponseTimeMs = o.now().Sub(start).Milliseconds()

	// An empty result from sources that all failed is not worth remembering.
	if useCache && (answered || len(result.POIs) > 0) {
		o.cache.Put(ctx, key, &CacheEntry{
			Result:            result,
			RequestedStrategy: strategy,
			MaxResults:        req.MaxResults,
			StoredAt:          o.now(),
		}, o.cfg.CacheTTL)
	}

	o.logger.Info("discover",
		"category", category,
		"strategy", strategy,
		"strategy_used", result.StrategyUsed,
		"results", len(result.POIs),
		"excluded", result.ExcludedCount,
		"fallback", result.FallbackUsed,
		"radius", result.RadiusMeters,
		"expansions", result.Expansions,
		"duration_ms", result.ResponseTimeMs,
	)
	return result, nil
}

func (o *DiscoveryOrchestrator) validate(req models.DiscoveryRequest) (models.Strategy, float64, error) {
	if !geo.ValidCoordinates(req.Origin.Latitude, req.Origin.Longitude) {
		return "", 0, apperrors.ErrInvalidRequest.WithDetails("invalid coordinates: lat=%v, lon=%v", req.Origin.Latitude, req.Origin.Longitude)
	}
	if req.MaxResults <= 0 {
		return "", 0, apperrors.ErrInvalidRequest.WithDetails("max_results must be positive (got %d)", req.MaxResults)
	}
	if req.RadiusMeters < 0 || math.IsNaN(req.RadiusMeters) || math.IsInf(req.RadiusMeters, 0) {
		return "", 0, apperrors.ErrInvalidRequest.WithDetails("radius must be a non-negative number of meters (got %v)", req.RadiusMeters)
	}

	strategy := req.Strategy
	if strategy == "" {
		parsed, err := models.ParseStrategy(o.cfg.DefaultStrategy)
		if err != nil {
			parsed = models.StrategyHybrid
		}
		strategy = parsed
	}
	if !strategy.Valid() {
		return "", 0, apperrors.ErrInvalidRequest.WithDetails("unknown strategy %q", req.Strategy)
	}

	radius := req.RadiusMeters
	if radius == 0 {
		radius = o.cfg.DefaultRadius
	}
	return strategy, math.Min(radius, o.cfg.MaxRadius), nil
}

func (o *DiscoveryOrchestrator) fromCache(ctx context.Context, key CacheKey, strategy models.Strategy, maxResults int) (*models.DiscoveryResult, bool) {
	entry, ok := o.cache.Get(ctx, key)
	if !ok || entry.RequestedStrategy != strategy || !entry.Covers(maxResults) {
		return nil, false
	}
	result := entry.Result.Clone()
	if len(result.POIs) > maxResults {
		result.POIs = result.POIs[:maxResults]
	}
	result.WasCached = true
	return result, true
}

// runStrategy executes one pass of strategy at q.RadiusMeters.
func (o *DiscoveryOrchestrator) runStrategy(ctx context.Context, strategy models.Strategy, q SourceQuery, pref *models.CategoryPreference) attempt {
	switch strategy {
	case models.StrategyLocalOnly:
		local := o.query(ctx, o.local, o.cfg.LocalTimeout, q)
		a := o.process(q, pref, local.pois)
		a.used, a.answered = models.StrategyLocalOnly, local.ok()
		return a

	case models.StrategyRemoteOnly:
		remote := o.query(ctx, o.remote, o.cfg.RemoteTimeout, q)
		a := o.process(q, pref, remote.pois)
		a.used, a.answered = models.StrategyRemoteOnly, remote.ok()
		return a

	case models.StrategyRemoteFirstWithFallback:
		return o.remoteFirst(ctx, q, pref)

	default:
		return o.hybrid(ctx, q, pref)
	}
}

func (o *DiscoveryOrchestrator) remoteFirst(ctx context.Context, q SourceQuery, pref *models.CategoryPreference) attempt {
	remote := o.query(ctx, o.remote, o.cfg.RemoteFirstTimeout, q)
	first := o.process(q, pref, remote.pois)
	if remote.ok() && len(first.pois) >= o.cfg.MinRemoteResults {
		first.used, first.answered = models.StrategyRemoteFirstWithFallback, true
		return first
	}
	if ctx.Err() != nil {
		return attempt{}
	}

	local := o.query(ctx, o.local, o.cfg.LocalTimeout, q)
	a := o.process(q, pref, remote.pois, local.pois)
	a.fallbackUsed = true
	a.answered = remote.ok() || local.ok()
	switch {
	case len(first.pois) > 0 && local.ok():
		a.used = models.StrategyHybrid
	case len(first.pois) > 0:
		a.used = models.StrategyRemoteOnly
	default:
		a.used = models.StrategyLocalOnly
	}
	return a
}

func (o *DiscoveryOrchestrator) hybrid(ctx context.Context, q SourceQuery, pref *models.CategoryPreference) attempt {
	budget, cancel := context.WithTimeout(ctx, o.cfg.HybridTimeout)
	defer cancel()

	var local, remote sourceOutcome
	g, gctx := errgroup.WithContext(budget)
	g.Go(func() error {
		local = o.query(gctx, o.local, o.cfg.LocalTimeout, q)
		return nil
	})
	g.Go(func() error {
		remote = o.query(gctx, o.remote, o.cfg.RemoteTimeout, q)
		return nil
	})
	_ = g.Wait()

	a := o.process(q, pref, remote.pois, local.pois)
	a.answered = local.ok() || remote.ok()
	switch {
	case local.ok() && remote.ok():
		a.used = models.StrategyHybrid
	case remote.ok():
		a.used, a.fallbackUsed = models.StrategyRemoteOnly, true
	case local.ok():
		a.used, a.fallbackUsed = models.StrategyLocalOnly, true
	default:
		a.used, a.fallbackUsed = models.StrategyHybrid, true
	}
	return a
}

// query calls src under its own timeout. The call is abandoned when the
// deadline passes even if src ignores ctx.
func (o *DiscoveryOrchestrator) query(ctx context.Context, src CandidateSource, timeout time.Duration, q SourceQuery) sourceOutcome {
	if src == nil {
		return sourceOutcome{err: ErrSourceUnavailable}
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan sourceOutcome, 1)
	go func() {
		pois, err := src.Candidates(callCtx, q)
		done <- sourceOutcome{pois: pois, err: err}
	}()

	var out sourceOutcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out = sourceOutcome{err: callCtx.Err()}
	}

	if out.err != nil {
		level := slog.LevelWarn
		if errors.Is(out.err, context.Canceled) {
			level = slog.LevelDebug
		}
		o.logger.Log(ctx, level, "candidate source failed",
			"source", src.Name(),
			"kind", src.Kind(),
			"error", out.err,
		)
		return sourceOutcome{err: fmt.Errorf("%s: %w", src.Name(), out.err)}
	}

	for i := range out.pois {
		out.pois[i].Source = src.Kind()
	}
	return out
}

// process is the shared pipeline: exclusion, disliked removal, dedup, rank.
// Lists are merged in order, so earlier lists win name collisions.
func (o *DiscoveryOrchestrator) process(q SourceQuery, pref *models.CategoryPreference, lists ...[]models.POI) attempt {
	var a attempt
	filtered := make([][]models.POI, 0, len(lists))
	for _, list := range lists {
		survivors, excluded := FilterCandidates(list, o.rules)
		a.excluded += excluded

		kept := make([]models.POI, 0, len(survivors))
		for _, poi := range survivors {
			if pref != nil && pref.IsDisliked(poi.ID) {
				a.excluded++
				continue
			}
			kept = append(kept, poi)
		}
		filtered = append(filtered, kept)
	}

	merged := MergeCandidates(o.cfg.DedupMeters, filtered...)
	a.pois = o.ranker.Rank(merged, q.Origin, pref)
	return a
}
