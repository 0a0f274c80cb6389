// Package admin implements the cross-account views and privileged mutations
// behind the admin API. Callers must already have checked the admin flag.
package admin

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"gorm.io/gorm"

	"linkfolio/internal/db"
	"linkfolio/models"
)

const (
	growthDays   = 30
	topProfiles  = 10
	recentUsers  = 10
	recentWindow = 7 * 24 * time.Hour
)

// Service runs admin queries against the database.
type Service struct {
	db      *gorm.DB
	started time.Time
	now     func() time.Time
}

// New returns a Service. started is reported as the process start time.
func New(database *gorm.DB, started time.Time) *Service {
	return &Service{
		db:      database,
		started: started,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type ProfileSummary struct {
	ID           string `json:"id"`
	PageName     string `json:"pageName"`
	DisplayName  string `json:"displayName"`
	OwnerEmail   string `json:"ownerEmail"`
	ProfileViews int64  `json:"profileViews"`
	Clicks       int64  `json:"clicks"`
}

type UserSummary struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName *string   `json:"firstName"`
	LastName  *string   `json:"lastName"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}

type GrowthPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Stats is the dashboard summary.
type Stats struct {
	TotalUsers       int64            `json:"totalUsers"`
	TotalProfiles    int64            `json:"totalProfiles"`
	TotalLinks       int64            `json:"totalLinks"`
	NewUsersThisWeek int64            `json:"newUsersThisWeek"`
	TotalViews       int64            `json:"totalViews"`
	TotalClicks      int64            `json:"totalClicks"`
	TopProfiles      []ProfileSummary `json:"topProfiles"`
	RecentUsers      []UserSummary    `json:"recentUsers"`
	UserGrowth       []GrowthPoint    `json:"userGrowth"`
}

func (s *Service) count(ctx context.Context, model any, where ...any) (int64, error) {
	var n int64
	query := s.db.WithContext(ctx).Model(model)
	if len(where) > 0 {
		query = query.Where(where[0], where[1:]...)
	}
	if err := query.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %T: %w", model, err)
	}
	return n, nil
}

// Stats gathers totals, leaders and the daily registration series.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()
	stats := &Stats{}
	var err error

	if stats.TotalUsers, err = s.count(ctx, &models.User{}); err != nil {
		return nil, err
	}
	if stats.TotalProfiles, err = s.count(ctx, &models.Profile{}); err != nil {
		return nil, err
	}
	if stats.TotalLinks, err = s.count(ctx, &models.SocialLink{}); err != nil {
		return nil, err
	}
	if stats.NewUsersThisWeek, err = s.count(ctx, &models.User{}, "created_at >= ?", now.Add(-recentWindow)); err != nil {
		return nil, err
	}

	var totals struct {
		Views  int64
		Clicks int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Profile{}).
		Select("COALESCE(SUM(profile_views), 0) AS views, COALESCE(SUM(clicks), 0) AS clicks").
		Scan(&totals).Error; err != nil {
		return nil, fmt.Errorf("sum counters: %w", err)
	}
	stats.TotalViews, stats.TotalClicks = totals.Views, totals.Clicks

	stats.TopProfiles = []ProfileSummary{}
	if err := s.db.WithContext(ctx).Table("profiles").
		Select("profiles.id, profiles.page_name, profiles.display_name, profiles.profile_views, profiles.clicks, users.email AS owner_email").
		Joins("LEFT JOIN users ON users.id = profiles.user_id").
		Order("profiles.profile_views DESC").Order("profiles.created_at ASC").
		Limit(topProfiles).
		Scan(&stats.TopProfiles).Error; err != nil {
		return nil, fmt.Errorf("top profiles: %w", err)
	}

	stats.RecentUsers = []UserSummary{}
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Select("id, email, first_name, last_name, is_admin, created_at").
		Order("created_at DESC").
		Limit(recentUsers).
		Scan(&stats.RecentUsers).Error; err != nil {
		return nil, fmt.Errorf("recent users: %w", err)
	}

	if stats.UserGrowth, err = s.growth(ctx, now); err != nil {
		return nil, err
	}
	return stats, nil
}

// growth buckets registrations per UTC day for the last growthDays days,
// oldest first, with empty days reported as zero.
func (s *Service) growth(ctx context.Context, now time.Time) ([]GrowthPoint, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(growthDays - 1))

	var created []time.Time
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("created_at >= ?", start).
		Pluck("created_at", &created).Error; err != nil {
		return nil, fmt.Errorf("user growth: %w", err)
	}

	counts := make(map[string]int64, growthDays)
	for _, ts := range created {
		counts[ts.UTC().Format(time.DateOnly)]++
	}

	series := make([]GrowthPoint, 0, growthDays)
	for day := start; !day.After(today); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		series = append(series, GrowthPoint{Date: key, Count: counts[key]})
	}
	return series, nil
}

type EntityCounts struct {
	Users    int64 `json:"users"`
	Profiles int64 `json:"profiles"`
	Links    int64 `json:"links"`
	Themes   int64 `json:"themes"`
}

type RecentCounts struct {
	Users    int64 `json:"users"`
	Profiles int64 `json:"profiles"`
}

type RuntimeInfo struct {
	GoVersion  string `json:"goVersion"`
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heapAllocBytes"`
	HeapSys    uint64 `json:"heapSysBytes"`
	NumGC      uint32 `json:"numGC"`
}

// Health is the operational view returned by SystemHealth.
type Health struct {
	Status        string       `json:"status"`
	Database      string       `json:"database"`
	Uptime        string       `json:"uptime"`
	UptimeSeconds int64        `json:"uptimeSeconds"`
	Counts        EntityCounts `json:"counts"`
	Last24Hours   RecentCounts `json:"last24Hours"`
	Runtime       RuntimeInfo  `json:"runtime"`
	Time          time.Time    `json:"time"`
}

// SystemHealth reports counts, recent activity, uptime and runtime figures.
// A failed database ping is reported in the result rather than as an error.
func (s *Service) SystemHealth(ctx context.Context) (*Health, error) {
	now := s.now()
	uptime := now.Sub(s.started).Truncate(time.Second)
	health := &Health{
		Status:        "ok",
		Database:      "ok",
		Uptime:        uptime.String(),
		UptimeSeconds: int64(uptime.Seconds()),
		Time:          now,
	}

	if err := db.Ping(ctx, s.db); err != nil {
		health.Status = "degraded"
		health.Database = "unreachable"
		return health, nil
	}

	var err error
	if health.Counts.Users, err = s.count(ctx, &models.User{}); err != nil {
		return nil, err
	}
	if health.Counts.Profiles, err = s.count(ctx, &models.Profile{}); err != nil {
		return nil, err
	}
	if health.Counts.Links, err = s.count(ctx, &models.SocialLink{}); err != nil {
		return nil, err
	}
	if health.Counts.Themes, err = s.count(ctx, &models.Theme{}); err != nil {
		return nil, err
	}
	since := now.Add(-24 * time.Hour)
	if health.Last24Hours.Users, err = s.count(ctx, &models.User{}, "created_at >= ?", since); err != nil {
		return nil, err
	}
	if health.Last24Hours.Profiles, err = s.count(ctx, &models.Profile{}, "created_at >= ?", since); err != nil {
		return nil, err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	health.Runtime = RuntimeInfo{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  mem.HeapAlloc,
		HeapSys:    mem.HeapSys,
		NumGC:      mem.NumGC,
	}
	return health, nil
}

// ActivityEntry is one row of the admin activity feed.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	ActorID   string    `json:"actorId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Activity returns the audit feed. No activity is recorded yet, so it is always empty.
func (s *Service) Activity(context.Context) []ActivityEntry {
	return []ActivityEntry{}
}
