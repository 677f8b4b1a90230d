package probation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mentorhq/mentorhub/internal/cache"
	"github.com/mentorhq/mentorhub/internal/gateway"
)

// Backend resource collections consumed by the engine.
const (
	ResourceSales     = "sales"
	ResourceWeek      = "week"
	ResourceKpiTarget = "mentor_weekly_target"
	ResourceKpiAction = "kpi_action_progress"
)

// derivedPrefix namespaces cached derived summaries so gateway write
// invalidation can drop them without touching raw resource entries.
const derivedPrefix = "derived:probation:"

// JoinStrategy names how trainee-scoped lookups are resolved.
type JoinStrategy string

const (
	// JoinNative passes the filter to the backend as a query parameter.
	JoinNative JoinStrategy = "native"
	// JoinManualIndex fetches the full collection and filters locally
	// via a secondary index. Selected when the backend rejects the
	// filter parameter.
	JoinManualIndex JoinStrategy = "manual_index"
)

// Service is the probation progress engine. It consumes the CRUD gateway
// for week records, KPI-action records, and per-week targets, and
// produces derived summaries for the dashboard. Summaries are cached
// briefly and dropped whenever an underlying record mutates.
type Service struct {
	gw  *gateway.Gateway
	log zerolog.Logger
	now func() time.Time

	mu           sync.Mutex
	joinStrategy JoinStrategy
}

// NewService creates the engine and registers the cache-invalidation
// rules that keep derived summaries consistent with the records they are
// computed from.
func NewService(gw *gateway.Gateway, log zerolog.Logger) *Service {
	for _, res := range []string{ResourceWeek, ResourceKpiTarget, ResourceKpiAction} {
		gw.AddInvalidationRule(res, derivedPrefix)
	}

	return &Service{
		gw:           gw,
		log:          log.With().Str("component", "probation").Logger(),
		now:          time.Now,
		joinStrategy: JoinNative,
	}
}

// GenerateWeeksForSales creates the fixed batch of probation weeks for a
// trainee. weekCount <= 0 uses the default of 12.
func (s *Service) GenerateWeeksForSales(salesID string, startingDate time.Time, weekCount int) ([]Week, error) {
	plan := PlanWeeks(salesID, startingDate, weekCount)
	res := s.gw.Resource(ResourceWeek).WithTTL(cache.TTLWeek)

	created := make([]Week, 0, len(plan))
	for _, w := range plan {
		body, err := res.Create(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create week %d: %w", w.WeekNumber, err)
		}

		var saved Week
		if err := json.Unmarshal(body, &saved); err != nil {
			return nil, fmt.Errorf("failed to decode created week %d: %w", w.WeekNumber, err)
		}
		created = append(created, saved)
	}

	s.log.Info().
		Str("sales_id", salesID).
		Int("weeks", len(created)).
		Str("starting_date", startingDate.Format(DateLayout)).
		Msg("Generated probation weeks")

	return created, nil
}

// WeeksBySalesID returns a trainee's probation weeks.
func (s *Service) WeeksBySalesID(salesID string, opts gateway.Options) ([]Week, error) {
	res := s.gw.Resource(ResourceWeek).WithTTL(cache.TTLWeek)
	return fetchScoped[Week](s, res, "sales_id", salesID, opts, func(w Week) string { return w.SalesID })
}

// SaleByUserID resolves the sales record belonging to a dashboard user.
func (s *Service) SaleByUserID(userID string, opts gateway.Options) (*Sale, error) {
	res := s.gw.Resource(ResourceSales).WithTTL(cache.TTLSales)
	matches, err := fetchScoped[Sale](s, res, "user_id", userID, opts, func(r Sale) string { return r.UserID })
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// Progress computes the trainee's probation summary. Any failed fetch
// fails the whole call; an incomplete summary is worse than no summary.
func (s *Service) Progress(salesID string, opts gateway.Options) (*ProbationProgress, error) {
	cacheKey := derivedPrefix + salesID

	if !opts.ForceRefresh {
		if val, ok := s.gw.Cache().Get(cacheKey); ok {
			cached := val.(ProbationProgress)
			return &cached, nil
		}
	}

	weeks, err := s.WeeksBySalesID(salesID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch weeks for sales %s: %w", salesID, err)
	}

	targets, err := fetchScoped[KpiTarget](s,
		s.gw.Resource(ResourceKpiTarget).WithTTL(cache.TTLWeeklyTarget),
		"sales_id", salesID, opts, func(t KpiTarget) string { return t.SalesID })
	if err != nil {
		return nil, fmt.Errorf("failed to fetch targets for sales %s: %w", salesID, err)
	}

	actions, err := fetchScoped[KpiActionRecord](s,
		s.gw.Resource(ResourceKpiAction).WithTTL(cache.TTLKpiAction),
		"sales_id", salesID, opts, func(a KpiActionRecord) string { return a.SalesID })
	if err != nil {
		return nil, fmt.Errorf("failed to fetch KPI actions for sales %s: %w", salesID, err)
	}

	result := computeProbation(salesID, weeks, targets, actions, s.now(), s.log)
	s.gw.Cache().SetTTL(cacheKey, result, cache.TTLDerivedProgress)

	return &result, nil
}

// Strategy reports the join strategy currently in use.
func (s *Service) Strategy() JoinStrategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.joinStrategy
}

// fetchScoped fetches records filtered to one parent value. The native
// strategy passes the filter as a backend query parameter; if the backend
// rejects it, the call falls back to fetching the full collection and
// filtering through a locally built index, and the service remembers the
// downgraded strategy for subsequent calls.
func fetchScoped[T any](s *Service, res *gateway.Resource, field, value string, opts gateway.Options, keyOf func(T) string) ([]T, error) {
	if s.Strategy() == JoinNative {
		scoped := opts
		scoped.Query = url.Values{field: []string{value}}

		body, err := res.GetAll(scoped)
		if err == nil {
			return decodeList[T](body)
		}

		var apiErr *gateway.Error
		if !errors.As(err, &apiErr) || !isJoinProbeFailure(apiErr) {
			return nil, err
		}

		s.mu.Lock()
		s.joinStrategy = JoinManualIndex
		s.mu.Unlock()
		s.log.Warn().
			Str("field", field).
			Str("kind", string(apiErr.Kind)).
			Msg("Backend rejected filter parameter, falling back to manual index")
	}

	// Manual index: one batch fetch, grouped locally.
	body, err := res.GetAll(gateway.Options{ForceRefresh: opts.ForceRefresh})
	if err != nil {
		return nil, err
	}
	all, err := decodeList[T](body)
	if err != nil {
		return nil, err
	}

	index := make(map[string][]T, len(all))
	for _, item := range all {
		k := keyOf(item)
		index[k] = append(index[k], item)
	}
	return index[value], nil
}

// isJoinProbeFailure reports whether a filtered-query failure indicates
// the backend doesn't support the filter parameter, as opposed to a
// failure that would also affect the unfiltered fallback.
func isJoinProbeFailure(err *gateway.Error) bool {
	return err.Kind == gateway.KindUnknown || err.Kind == gateway.KindServerError
}

// decodeList parses a backend collection response.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	return items, nil
}
