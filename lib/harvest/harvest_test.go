package harvest

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bonuswatch-backend/lib/bonus"
	"bonuswatch-backend/lib/bonusstore"
	"bonuswatch-backend/lib/scrapers/merchant"
	"bonuswatch-backend/lib/telemetry"
	"bonuswatch-backend/lib/testutil"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	cleanup := telemetry.SetupForTesting("test:harvest")
	defer cleanup()
	m.Run()
}

func TestLoadURLs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	err := os.WriteFile(path, []byte(
		"https://a.example\n\n# comment\n  https://b.example  \n"), 0644)
	require.NoError(t, err)

	urls, err := LoadURLs(path)
	require.NoError(t, err)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, urls)

	_, err = LoadURLs(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestRunCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "run_metrics_cache.json")

	cache := LoadRunCache(path)
	require.Equal(t, 0, cache.TotalRuns)

	cache.TotalRuns++
	cache.RecordSite("https://a.example", 5, 0, 0)
	cache.RecordSite("https://a.example", 3, 0, 1)
	require.NoError(t, cache.Save(path))

	loaded := LoadRunCache(path)
	require.Equal(t, 1, loaded.TotalRuns)
	stats := loaded.Sites["https://a.example"]
	require.Equal(t, 3, stats.LastRunBonuses)
	require.Equal(t, 8, stats.TotalBonuses)
	require.Equal(t, 1, stats.TotalErrors)

	// corruption resets rather than failing
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	reset := LoadRunCache(path)
	require.Equal(t, 0, reset.TotalRuns)
	require.NotNil(t, reset.Sites)
}

func TestFlags(t *testing.T) {
	var f Flags
	f.Observe(bonus.Bonus{Name: "Daily Commission Payout"})
	f.Observe(bonus.Bonus{Name: "Mystery", IsAutoClaim: true, HasLossRequirement: true})
	require.True(t, f.Commission)
	require.True(t, f.Other)
	require.False(t, f.Share)
	require.Equal(t, "C--O A-L-", f.String())
}

const sitePage = `<html><script>var MERCHANTID = %d; var MERCHANTNAME = "Site %d";</script></html>`

func newSite(t *testing.T, id int, bonuses []any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, sitePage, id, id)
	})
	mux.HandleFunc("/api/v1/index.php", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.PostFormValue("module") {
		case "/users/login":
			json.NewEncoder(w).Encode(map[string]any{
				"status": "SUCCESS",
				"data":   map[string]any{"id": float64(id), "token": "tok"},
			})
		case "/users/syncData":
			json.NewEncoder(w).Encode(map[string]any{
				"status": "SUCCESS",
				"data":   map[string]any{"bonus": bonuses},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRunSurvivesBadSite(t *testing.T) {
	good := newSite(t, 1, []any{
		map[string]any{"id": 1.0, "name": "Welcome Bonus", "amount": 50.0},
		map[string]any{"id": 2.0, "name": "Share Bonus", "amount": 10.0},
	})
	second := newSite(t, 2, []any{
		map[string]any{"id": 9.0, "name": "Rebate", "amount": 5.0},
	})
	dead := httptest.NewServer(nil)
	dead.Close()

	service, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "harvest",
		DbSchema: bonusstore.Schema,
	})
	defer cleanup()
	store := bonusstore.NewStore(service.DB)

	csvPath := filepath.Join(t.TempDir(), "bonuses.csv")
	cache := &RunCache{Sites: map[string]SiteStats{}}
	var progress bytes.Buffer

	h := New(merchant.NewClient(merchant.ClientOptions{Timeout: time.Second * 5}), Options{
		Credential:   merchant.Credential{Username: "u", Password: "p"},
		Store:        &store,
		BonusCSVPath: csvPath,
		RunCache:     cache,
		Progress:     &progress,
	})
	summary := h.Run(context.Background(), []string{good.URL, dead.URL, second.URL})

	require.Equal(t, 3, summary.Sites)
	require.Equal(t, 1, summary.Failed)
	require.Equal(t, 3, summary.Bonuses)
	require.Equal(t, float64(65), summary.TotalAmount)
	require.Equal(t, 1, summary.Failures["fetch_failed"])
	require.Len(t, summary.FailedSites, 1)

	rows, err := store.BySite(context.Background(), good.URL)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Site 1", rows[0].MerchantName)

	file, err := os.Open(csvPath)
	require.NoError(t, err)
	defer file.Close()
	all, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 4)

	require.Equal(t, 1, cache.TotalRuns)
	require.Equal(t, 2, cache.Sites[good.URL].LastRunBonuses)
	require.Equal(t, 1, cache.Sites[dead.URL].LastRunErrors)
}

func TestRunConcurrent(t *testing.T) {
	sites := make([]string, 6)
	for i := range sites {
		srv := newSite(t, i+10, []any{
			map[string]any{"id": 1.0, "name": "Welcome", "amount": 1.0},
		})
		sites[i] = srv.URL
	}

	h := New(merchant.NewClient(merchant.ClientOptions{Timeout: time.Second * 5}), Options{
		Credential:  merchant.Credential{Username: "u", Password: "p"},
		Concurrency: 3,
		Progress:    &bytes.Buffer{},
	})
	summary := h.Run(context.Background(), sites)
	require.Equal(t, 0, summary.Failed)
	require.Equal(t, 6, summary.Bonuses)
}
