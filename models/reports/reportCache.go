package reports

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/models"
	"github.com/mmdatafocus/pipeworks_backend/utils"
	"github.com/sirupsen/logrus"
)

// Env:
// - ENABLE_REPORT_CACHE=true
// - REPORT_CACHE_TTL_SECONDS (default 120)
// - REPORT_SLOW_MS (default 500)
func reportCacheEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ENABLE_REPORT_CACHE"))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func reportCacheTTL() time.Duration {
	if n := config.IntFromEnv("REPORT_CACHE_TTL_SECONDS", 120); n > 0 {
		return time.Duration(n) * time.Second
	}
	return 120 * time.Second
}

func logSlowReport(ctx context.Context, name string, started time.Time, extra logrus.Fields) {
	d := time.Since(started)
	if d.Milliseconds() < int64(config.IntFromEnv("REPORT_SLOW_MS", 500)) {
		return
	}
	fields := logrus.Fields{"field": "report", "name": name, "ms": d.Milliseconds()}
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		fields["correlation_id"] = cid
	}
	if user, ok := utils.GetUsernameFromContext(ctx); ok {
		fields["username"] = user
	}
	for k, v := range extra {
		fields[k] = v
	}
	config.GetLogger().WithFields(fields).Warn("slow report")
}

// SalesReportHistory lists monthly totals in fromMonth..toMonth. With the
// cache on, a range is served from Redis for REPORT_CACHE_TTL_SECONDS, so
// totals can lag new invoices by up to that long.
func SalesReportHistory(ctx context.Context, fromMonth string, toMonth string) ([]models.SalesReportTotal, error) {
	started := time.Now()
	defer logSlowReport(ctx, "SalesReportHistory", started, logrus.Fields{"from": fromMonth, "to": toMonth})

	cacheKey := "report:sales:" + fromMonth + ":" + toMonth
	if reportCacheEnabled() {
		var cached []models.SalesReportTotal
		if ok, err := config.GetRedisObject(cacheKey, &cached); err == nil && ok {
			return cached, nil
		}
	}
	totals, err := models.ListSalesReports(ctx, fromMonth, toMonth)
	if err != nil {
		return nil, err
	}
	if reportCacheEnabled() {
		if err := config.SetRedisObject(cacheKey, totals, reportCacheTTL()); err != nil {
			config.LogError(config.GetLogger(), "reports", "SalesReportHistory", "cache", cacheKey, err)
		}
	}
	return totals, nil
}
