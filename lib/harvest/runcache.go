package harvest

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// SiteStats is the per-site slice of the run metrics cache: what the
// last run produced and the running totals across all runs.
type SiteStats struct {
	LastRunBonuses   int    `json:"last_run_new_bonuses"`
	TotalBonuses     int    `json:"cumulative_total_bonuses"`
	LastRunDownlines int    `json:"last_run_new_downlines"`
	TotalDownlines   int    `json:"cumulative_total_downlines"`
	LastRunErrors    int    `json:"last_run_new_errors"`
	TotalErrors      int    `json:"cumulative_total_errors"`
	LastProcessed    string `json:"last_processed_timestamp"`
}

// RunCache carries informational run counters between invocations. It
// is best-effort only: a missing or corrupt cache file resets the
// counters and never fails a run.
type RunCache struct {
	TotalRuns int                  `json:"total_script_runs"`
	Sites     map[string]SiteStats `json:"sites"`
}

func LoadRunCache(path string) *RunCache {
	cache := &RunCache{Sites: map[string]SiteStats{}}
	buf, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read run cache", "path", path, "err", err)
		}
		return cache
	}
	err = json.Unmarshal(buf, cache)
	if err != nil {
		slog.Warn("run cache malformed, reinitializing", "path", path, "err", err)
		return &RunCache{Sites: map[string]SiteStats{}}
	}
	if cache.Sites == nil {
		cache.Sites = map[string]SiteStats{}
	}
	return cache
}

func (c *RunCache) Save(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return err
	}
	buf, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0644)
}

// RecordSite folds one site's run outcome into the cache.
func (c *RunCache) RecordSite(site string, bonuses, downlines, errors int) {
	stats := c.Sites[site]
	stats.LastRunBonuses = bonuses
	stats.TotalBonuses += bonuses
	stats.LastRunDownlines = downlines
	stats.TotalDownlines += downlines
	stats.LastRunErrors = errors
	stats.TotalErrors += errors
	stats.LastProcessed = time.Now().Format(time.RFC3339)
	c.Sites[site] = stats
}
