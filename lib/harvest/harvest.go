// Package harvest drives the full per-site pipeline over a URL list:
// authenticate, fetch, normalize, persist. One bad site is logged and
// skipped, never fatal to the run.
package harvest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"bonuswatch-backend/lib/bonus"
	"bonuswatch-backend/lib/bonuscsv"
	"bonuswatch-backend/lib/bonusstore"
	"bonuswatch-backend/lib/downline"
	"bonuswatch-backend/lib/scrapers/merchant"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("harvest")

type Options struct {
	Credential merchant.Credential
	// number of sites in flight at once; 0 or 1 means sequential
	Concurrency int
	// when set, sites are harvested for downlines instead of bonuses
	DownlineLog *downline.Log

	// either sink may be nil/empty to disable it; they fail
	// independently
	Store        *bonusstore.Store
	BonusCSVPath string

	RunCache *RunCache
	// progress destination, defaults to stdout
	Progress io.Writer
}

type Harvester struct {
	client *merchant.Client
	opts   Options

	// serializes sink writes so per-site batches never interleave
	sinkMu sync.Mutex
}

func New(client *merchant.Client, opts Options) *Harvester {
	if opts.Progress == nil {
		opts.Progress = os.Stdout
	}
	return &Harvester{client: client, opts: opts}
}

// SiteResult is the outcome of one site's pipeline.
type SiteResult struct {
	Site      string
	Bonuses   []bonus.Bonus
	Downlines int
	Flags     Flags
	Duration  time.Duration
	Err       error
}

type Summary struct {
	Sites       int
	Failed      int
	Bonuses     int
	Downlines   int
	TotalAmount float64
	// failure taxonomy kind -> count
	Failures    map[string]int
	FailedSites []string
	Duration    time.Duration
}

func failureKind(err error) string {
	if kind, ok := merchant.Kind(err); ok {
		return kind.String()
	}
	return "unexpected"
}

// processSite runs the scrape half of the pipeline for one raw URL.
// Panics are contained here so a single misbehaving site can never take
// the run down.
func (h *Harvester) processSite(ctx context.Context, rawURL string) (result SiteResult) {
	ctx, span := tracer.Start(ctx, "harvester:processSite")
	defer span.End()

	start := time.Now()
	result.Site = rawURL
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("panic: %v", r)
		}
		if result.Err != nil {
			span.SetStatus(codes.Error, result.Err.Error())
		}
		result.Duration = time.Since(start)
	}()

	siteURL, err := merchant.CleanBaseURL(rawURL)
	if err != nil {
		result.Err = err
		return result
	}
	result.Site = siteURL

	session, err := h.client.Authenticate(ctx, siteURL, h.opts.Credential)
	if err != nil {
		result.Err = err
		return result
	}
	slog.InfoContext(ctx, "authenticated",
		"site", siteURL, "merchant", session.MerchantName)

	if h.opts.DownlineLog != nil {
		count, err := downline.Harvest(ctx, h.client, session, siteURL, h.opts.DownlineLog)
		result.Downlines = count
		result.Err = err
		return result
	}

	records, err := h.client.SyncBonuses(ctx, session)
	if err != nil {
		result.Err = err
		return result
	}
	for _, raw := range records {
		b := bonus.Normalize(raw, siteURL, session.MerchantName)
		result.Flags.Observe(b)
		result.Bonuses = append(result.Bonuses, b)
	}
	return result
}

// persist writes one site's bonuses to whichever sinks are enabled. The
// sinks fail independently: a row-store error never blocks the CSV
// append and vice versa.
func (h *Harvester) persist(ctx context.Context, res SiteResult) {
	if len(res.Bonuses) == 0 {
		return
	}
	h.sinkMu.Lock()
	defer h.sinkMu.Unlock()

	if h.opts.Store != nil {
		err := h.opts.Store.Upsert(ctx, res.Bonuses)
		if err != nil {
			slog.ErrorContext(ctx, "row store upsert failed",
				"site", res.Site, "err", err)
		}
	}
	if h.opts.BonusCSVPath != "" {
		err := bonuscsv.Append(h.opts.BonusCSVPath, res.Bonuses)
		if err != nil {
			slog.ErrorContext(ctx, "bonus csv append failed",
				"site", res.Site, "err", err)
		}
	}
}

// Run processes the URL list to completion and reports the aggregate
// outcome. Results are persisted per site as they arrive, so an aborted
// run loses at most the in-flight sites.
func (h *Harvester) Run(ctx context.Context, urls []string) Summary {
	ctx, span := tracer.Start(ctx, "harvester:Run")
	defer span.End()

	start := time.Now()
	if h.opts.RunCache != nil {
		h.opts.RunCache.TotalRuns++
	}

	concurrency := h.opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	jobs := make(chan string)
	results := make(chan SiteResult)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for url := range jobs {
				results <- h.processSite(ctx, url)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, url := range urls {
			select {
			case jobs <- url:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	summary := Summary{Failures: map[string]int{}}
	done := 0
	for res := range results {
		done++
		errored := 0
		if res.Err != nil {
			errored = 1
			summary.Failed++
			summary.Failures[failureKind(res.Err)]++
			summary.FailedSites = append(summary.FailedSites, res.Site)
			slog.WarnContext(ctx, "site failed",
				"site", res.Site, "kind", failureKind(res.Err), "err", res.Err)
		} else {
			h.persist(ctx, res)
			summary.Bonuses += len(res.Bonuses)
			summary.Downlines += res.Downlines
			for _, b := range res.Bonuses {
				summary.TotalAmount += b.Amount
			}
		}
		if h.opts.RunCache != nil {
			h.opts.RunCache.RecordSite(res.Site, len(res.Bonuses), res.Downlines, errored)
		}

		fmt.Fprintf(h.opts.Progress, "[%d/%d] %-48s %6.1fs  bonuses=%-4d downlines=%-4d flags=%s\n",
			done, len(urls), res.Site, res.Duration.Seconds(),
			len(res.Bonuses), res.Downlines, res.Flags)
	}

	summary.Sites = len(urls)
	summary.Duration = time.Since(start)
	h.renderSummary(summary)
	return summary
}

func (h *Harvester) renderSummary(summary Summary) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(h.opts.Progress)
	t.AppendHeader(table.Row{"Sites", "Failed", "Bonuses", "Downlines", "Total Amount", "Duration"})
	t.AppendRow(table.Row{
		summary.Sites, summary.Failed, summary.Bonuses, summary.Downlines,
		fmt.Sprintf("%.2f", summary.TotalAmount),
		summary.Duration.Round(time.Millisecond * 100),
	})
	t.Render()

	if len(summary.Failures) > 0 {
		ft := table.NewWriter()
		ft.SetStyle(table.StyleRounded)
		ft.SetOutputMirror(h.opts.Progress)
		ft.AppendHeader(table.Row{"Failure", "Count"})
		for kind, count := range summary.Failures {
			ft.AppendRow(table.Row{kind, count})
		}
		ft.Render()
	}
}
