package cache

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate the entry expiry.
const (
	// Very stable data (rarely changes)
	TTLKpiCatalog  = 30 * time.Minute // KPI definitions change via admin actions only
	TTLRequirement = 30 * time.Minute // Requirement catalog, admin-managed
	TTLRank        = 30 * time.Minute // Rank/promotion rules

	// Per-trainee records (change during normal mentor activity)
	TTLSales = 5 * time.Minute // Trainee records
	TTLWeek  = 5 * time.Minute // Probation week boundaries
	TTLUser  = 5 * time.Minute // User/role records

	// Frequently mutated data
	TTLKpiAction    = time.Minute // Logged KPI actions, mutated throughout the day
	TTLWeeklyTarget = time.Minute // Per-week numeric targets

	// Short-lived derived data (recomputed on demand, never persisted)
	TTLDerivedProgress = 30 * time.Second // Probation progress summaries
)
