package commands

import (
	"log/slog"
	"time"

	"bonuswatch-backend/lib/bonusstore"
	"bonuswatch-backend/lib/configutil"
	"bonuswatch-backend/lib/downline"
	"bonuswatch-backend/lib/harvest"
	"bonuswatch-backend/lib/ratelimit"
	"bonuswatch-backend/lib/restyutil"
	"bonuswatch-backend/lib/scrapers/merchant"
	"bonuswatch-backend/lib/serviceutil"
	"bonuswatch-backend/lib/sqliteutil"

	"github.com/spf13/cobra"
)

type OutputConfig struct {
	// sqlite path or libsql url; empty disables the row store
	Database string `json:"database"`
	// empty disables the csv audit log
	BonusCsv    string `json:"bonus_csv"`
	DownlineCsv string `json:"downline_csv"`
	RunCache    string `json:"run_cache"`
}

type Config struct {
	Username string `json:"username"`
	Password string `json:"password"`
	UrlFile  string `json:"url_file"`

	// harvest downlines instead of bonuses
	DownlineEnabled bool `json:"downline_enabled"`

	MinRequestIntervalMs  int `json:"min_request_interval_ms"`
	JitterMinMs           int `json:"jitter_min_ms"`
	JitterMaxMs           int `json:"jitter_max_ms"`
	MaxConcurrentRequests int `json:"max_concurrent_requests"`

	Output OutputConfig `json:"output"`
}

var scrapeDb *string
var dumpHttp *string

func init() {
	scrapeDb = scrapeCmd.Flags().String("db", "", "Override the output database path from the config.")
	dumpHttp = scrapeCmd.Flags().String("dump-http", "", "Dump every HTTP exchange to the given directory.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--db <path/to/output.db>] [--dump-http <dir>]",
	Short: "Harvests every site in the configured URL list and persists the results.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := configutil.ReadConfig[Config]("config.json5")
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if cfg.Username == "" || cfg.Password == "" {
			serviceutil.Fatal("username and password must be set in config", nil)
		}
		if cfg.UrlFile == "" {
			serviceutil.Fatal("url_file must be set in config", nil)
		}
		if cfg.MinRequestIntervalMs <= 0 {
			cfg.MinRequestIntervalMs = 1000
		}

		urls, err := harvest.LoadURLs(cfg.UrlFile)
		if err != nil {
			serviceutil.Fatal("failed to read url list", err)
		}
		if len(urls) == 0 {
			serviceutil.Fatal("url list is empty", nil)
		}
		slog.Info("loaded url list", "path", cfg.UrlFile, "count", len(urls))

		var dump restyutil.InstrumentOutput
		if *dumpHttp != "" {
			out, err := restyutil.NewFilesystemOutput(*dumpHttp)
			if err != nil {
				serviceutil.Fatal("failed to create http dump directory", err)
			}
			dump = out
		}

		limiter := ratelimit.New(ratelimit.Options{
			MinInterval: time.Millisecond * time.Duration(cfg.MinRequestIntervalMs),
			JitterMin:   time.Millisecond * time.Duration(cfg.JitterMinMs),
			JitterMax:   time.Millisecond * time.Duration(cfg.JitterMaxMs),
		})
		client := merchant.NewClient(merchant.ClientOptions{
			Limiter:    limiter,
			DumpOutput: dump,
		})

		opts := harvest.Options{
			Credential: merchant.Credential{
				Username: cfg.Username,
				Password: cfg.Password,
			},
			Concurrency:  cfg.MaxConcurrentRequests,
			BonusCSVPath: cfg.Output.BonusCsv,
		}

		dbPath := cfg.Output.Database
		if *scrapeDb != "" {
			dbPath = *scrapeDb
		}
		if dbPath != "" && !cfg.DownlineEnabled {
			database, err := sqliteutil.OpenDB(bonusstore.Schema, dbPath)
			if err != nil {
				serviceutil.Fatal("failed to open db", err)
			}
			defer database.Close()
			store := bonusstore.NewStore(database)
			opts.Store = &store
		}

		if cfg.DownlineEnabled {
			if cfg.Output.DownlineCsv == "" {
				serviceutil.Fatal("downline_csv must be set when downline_enabled", nil)
			}
			log, err := downline.OpenLog(cfg.Output.DownlineCsv)
			if err != nil {
				serviceutil.Fatal("failed to open downline csv", err)
			}
			opts.DownlineLog = log
		}

		if cfg.Output.RunCache != "" {
			opts.RunCache = harvest.LoadRunCache(cfg.Output.RunCache)
		}

		t1 := time.Now()
		summary := harvest.New(client, opts).Run(cmd.Context(), urls)
		slog.Info("harvest finished",
			"seconds", time.Since(t1).Seconds(),
			"sites", summary.Sites,
			"failed", summary.Failed,
			"bonuses", summary.Bonuses,
			"downlines", summary.Downlines,
		)

		if opts.RunCache != nil {
			err = opts.RunCache.Save(cfg.Output.RunCache)
			if err != nil {
				slog.Error("failed to save run cache", "path", cfg.Output.RunCache, "err", err)
			}
		}
	},
}
