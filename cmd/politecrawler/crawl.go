package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nao1215/politecrawler/internal/change"
	"github.com/nao1215/politecrawler/internal/config"
	"github.com/nao1215/politecrawler/internal/crawler"
	"github.com/nao1215/politecrawler/internal/database"
	"github.com/nao1215/politecrawler/internal/log"
	"github.com/nao1215/politecrawler/internal/report"
	"github.com/nao1215/politecrawler/internal/stats"
)

// defaultProgressInterval is how often a running crawl logs its progress.
const defaultProgressInterval = 30 * time.Second

// crawlOptions are the crawl command settings that are not part of
// config.Config.
type crawlOptions struct {
	seeds            []string
	noStore          bool
	fresh            bool
	metricsAddr      string
	duration         time.Duration
	progressInterval time.Duration
	jsonReport       bool
	markdownReport   bool
	reportFile       string
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl registered domains starting from seed URLs",
		Long: `Crawl fetches pages of the registered domains until no URL is left,
the --duration elapses or the process receives SIGINT or SIGTERM.

The domain of every seed URL is registered automatically. Domains and seeds
can also be listed in the configuration file. Links are followed only within
registered domains and up to the maximum depth.

Pages are stored in a SQLite database in the XDG data directory. Pages
crawled within the recrawl interval in an earlier run are skipped unless
--fresh is given.

Examples:
  # Crawl one site
  politecrawler crawl https://example.se/

  # Crawl two sites with four workers and a two second delay
  politecrawler crawl -w 4 --delay 2s https://example.se/ https://example.no/

  # Crawl the domains of the configuration file for an hour
  politecrawler crawl -c crawl.yaml --duration 1h

  # Expose Prometheus metrics while crawling
  politecrawler crawl --metrics-addr :9090 https://example.se/

  # Write a Markdown report
  politecrawler crawl -m -o report.md https://example.se/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link distance from a seed URL")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPagesPerDomain,
		"Maximum URLs per domain (0 disables the cap)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetches")
	cmd.Flags().DurationP("timeout", "t", config.DefaultRequestTimeout,
		"Timeout for each request")
	cmd.Flags().Int("retries", config.DefaultMaxRetries,
		"Retries for transient failures")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum delay between requests to one host")
	cmd.Flags().Int("rate", 0,
		"Maximum requests to one host per --rate-window (0 disables the limit)")
	cmd.Flags().Duration("rate-window", 0,
		"Window of the --rate request budget")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header and robots.txt agent name")
	cmd.Flags().String("robots-policy", config.DefaultRobotsFailurePolicy,
		"Policy when robots.txt is unreachable (allow or deny)")
	cmd.Flags().Int("failure-threshold", config.DefaultFailureThreshold,
		"Consecutive failures that suspend a domain")
	cmd.Flags().Duration("cooldown", config.DefaultSuspendCooldown,
		"Automatic resume delay of a suspended domain (0 means never)")
	cmd.Flags().Duration("recrawl-interval", config.DefaultRecrawlInterval,
		"Minimum age of a page before it is fetched again")
	cmd.Flags().Duration("duration", 0,
		"Stop the crawl after this long (0 means until done)")
	cmd.Flags().Duration("progress", defaultProgressInterval,
		"Interval of progress log lines shown with --verbose (0 disables them)")

	// Connection and storage flags
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address (e.g., 127.0.0.1:1080)")
	cmd.Flags().String("redis", "",
		"Redis address for content hashes (default: SQLite database)")
	cmd.Flags().String("db-dir", "",
		"Directory of the page database (default: XDG data directory)")
	cmd.Flags().Bool("no-store", false,
		"Do not store pages in the database")
	cmd.Flags().Bool("fresh", false,
		"Ignore crawl history from earlier runs")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics and status on this address (e.g., :9090)")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .politecrawler.yaml in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.MarkFlagsMutuallyExclusive("json", "markdown")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	opts, err := buildCrawlOptions(cmd, args)
	if err != nil {
		return err
	}

	logger := setupLogger(cmd)
	slog.SetDefault(logger)

	// SIGINT and SIGTERM end the crawl gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, opts, logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the redacting structured logger on stderr.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	asJSON, err := cmd.Flags().GetBool("log-json")
	if err != nil {
		asJSON = false
	}
	if asJSON {
		return log.NewSecureJSONLogger(os.Stderr, verbose)
	}
	return log.NewSecureLogger(os.Stderr, verbose)
}

// loadConfigFile applies the configuration file to cfg. An explicitly
// given path must exist; otherwise a missing file is not an error.
func loadConfigFile(cfg *config.Config, path string) error {
	cfg.ConfigFilePath = path
	found := config.FindConfigFile(path)
	if found == "" {
		if path != "" {
			return fmt.Errorf("configuration file not found: %s", path)
		}
		return nil
	}

	cf, err := config.LoadConfigFile(found)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", found, err)
	}
	cf.Apply(cfg)
	return nil
}

// buildConfig creates a Config from defaults, the configuration file and
// the command flags, in that order. Only flags set on the command line
// override the file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if err := loadConfigFile(cfg, configPath); err != nil {
		return nil, err
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"depth", &cfg.MaxDepth},
		{"max-pages", &cfg.MaxPagesPerDomain},
		{"workers", &cfg.Workers},
		{"retries", &cfg.MaxRetries},
		{"rate", &cfg.RateLimitRequests},
		{"failure-threshold", &cfg.FailureThreshold},
	}
	for _, f := range ints {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetInt(f.name); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"timeout", &cfg.RequestTimeout},
		{"delay", &cfg.CrawlDelay},
		{"rate-window", &cfg.RateLimitWindow},
		{"cooldown", &cfg.SuspendCooldown},
		{"recrawl-interval", &cfg.RecrawlInterval},
	}
	for _, f := range durations {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetDuration(f.name); err != nil {
			return nil, err
		}
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"user-agent", &cfg.UserAgent},
		{"robots-policy", &cfg.RobotsFailurePolicy},
		{"proxy", &cfg.ProxyAddress},
		{"redis", &cfg.RedisAddress},
		{"db-dir", &cfg.DBDir},
	}
	for _, f := range strs {
		if !flags.Changed(f.name) {
			continue
		}
		if *f.dst, err = flags.GetString(f.name); err != nil {
			return nil, err
		}
	}

	cfg.Verbose = getVerboseFlag(cmd)
	return cfg, nil
}

// buildCrawlOptions reads the flags that are not part of config.Config.
func buildCrawlOptions(cmd *cobra.Command, args []string) (crawlOptions, error) {
	flags := cmd.Flags()
	opts := crawlOptions{seeds: args}

	var err error
	if opts.noStore, err = flags.GetBool("no-store"); err != nil {
		return opts, err
	}
	if opts.fresh, err = flags.GetBool("fresh"); err != nil {
		return opts, err
	}
	if opts.metricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return opts, err
	}
	if opts.duration, err = flags.GetDuration("duration"); err != nil {
		return opts, err
	}
	if opts.progressInterval, err = flags.GetDuration("progress"); err != nil {
		return opts, err
	}
	if opts.jsonReport, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdownReport, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.reportFile, err = flags.GetString("output"); err != nil {
		return opts, err
	}
	return opts, nil
}

// runCrawl runs one crawl session and writes its report to out.
func runCrawl(ctx context.Context, cfg *config.Config, opts crawlOptions, logger *slog.Logger, out io.Writer) error {
	var store *database.PageStore
	if !opts.noStore {
		var err error
		store, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer store.Close()
		logger.Info("database opened", "path", store.Path())
	}

	crawlerOpts := []crawler.Option{crawler.WithLogger(logger)}
	if store != nil {
		crawlerOpts = append(crawlerOpts, crawler.WithSink(store))
	}
	hashes, closeHashes, err := openChangeStore(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer closeHashes()
	if hashes != nil {
		crawlerOpts = append(crawlerOpts, crawler.WithChangeStore(hashes))
	}

	c, err := crawler.New(cfg, crawlerOpts...)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := addSeeds(c, opts.seeds); err != nil {
		return err
	}
	if len(c.Domains()) == 0 {
		return errors.New("no seeds provided (give seed URLs as arguments or list domains in the configuration file)")
	}

	if store != nil && !opts.fresh {
		if err := restoreHistory(ctx, c, store, logger); err != nil {
			return err
		}
	}

	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           metricsHandler(c),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "addr", opts.metricsAddr, "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // best effort on exit
		}()
		logger.Info("metrics server listening", "addr", opts.metricsAddr)
	}

	waitCtx := ctx
	if opts.duration > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	fmt.Fprintf(out, "Crawling %d domain(s)...\n", len(c.Domains()))
	startTime := time.Now()

	// The crawl itself is not bound to ctx: a signal ends the wait and Stop
	// drains in-flight fetches.
	if err := c.Start(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	stopProgress := logProgress(c, opts.progressInterval, logger)

	var crawlErr error
	switch err := c.Wait(waitCtx); {
	case err == nil:
		logger.Info("crawl finished")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Info("crawl interrupted", "reason", err)
	default:
		crawlErr = err
	}
	stopProgress()

	if state := c.State(); state == crawler.StateRunning || state == crawler.StatePaused {
		if err := c.Stop(); err != nil {
			logger.Warn("failed to stop crawler", "error", err)
		}
	}
	fmt.Fprintf(out, "Crawl completed in %s\n\n", time.Since(startTime).Round(time.Millisecond))

	var stored []database.DomainSummary
	if store != nil {
		// The report is written even when ctx was canceled by a signal.
		stored, err = store.DomainSummaries(context.WithoutCancel(ctx))
		if err != nil {
			logger.Error("failed to read stored pages", "error", err)
		}
	}
	if err := outputReport(opts, report.FromCrawler(c, stored), out); err != nil {
		logger.Error("report failed", "error", err)
	}
	return crawlErr
}

// openChangeStore selects where content hashes are kept: Redis when an
// address is configured, otherwise the page database. The returned store
// is nil when neither is available.
func openChangeStore(ctx context.Context, cfg *config.Config, store *database.PageStore) (change.Store, func(), error) {
	if cfg.RedisAddress != "" {
		rs, err := change.NewRedisStore(ctx, cfg.RedisAddress, "", 0)
		if err != nil {
			return nil, nil, err
		}
		return rs, func() { _ = rs.Close() }, nil //nolint:errcheck // closing on exit
	}
	if store != nil {
		return store.HashStore(), func() {}, nil
	}
	return nil, func() {}, nil
}

// addSeeds registers the domain of every seed and enqueues the seed.
// A seed under an already registered domain keeps that registration.
func addSeeds(c *crawler.Crawler, seeds []string) error {
	for _, seed := range seeds {
		err := c.AddSeed(seed)
		if errors.Is(err, crawler.ErrUnknownDomain) {
			if err := c.AddDomain(seed, 1, true); err != nil {
				return fmt.Errorf("invalid seed %q: %w", seed, err)
			}
			err = c.AddSeed(seed)
		}
		if err != nil {
			return fmt.Errorf("invalid seed %q: %w", seed, err)
		}
	}
	return nil
}

// restoreHistory feeds the crawl times of stored pages to the recrawl
// scheduler so recently crawled pages are skipped.
func restoreHistory(ctx context.Context, c *crawler.Crawler, store *database.PageStore, logger *slog.Logger) error {
	restored := 0
	for _, d := range c.Domains() {
		times, err := store.LastCrawledTimes(ctx, d.Name)
		if err != nil {
			return fmt.Errorf("failed to restore crawl history: %w", err)
		}
		for url, at := range times {
			c.RestoreHistory(url, at)
		}
		restored += len(times)
	}
	if restored > 0 {
		logger.Info("crawl history restored", "pages", restored)
	}
	return nil
}

// metricsHandler serves Prometheus metrics at /metrics and the crawler
// status as JSON at /status.
func metricsHandler(c *crawler.Crawler) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(stats.NewCollector(c.Statistics()))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		rep := report.FromCrawler(c, nil)
		if _, err := report.NewJSONWriter(w).Write(rep); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return mux
}

// logProgress logs the crawler status every interval until the returned
// function is called.
func logProgress(c *crawler.Crawler, interval time.Duration, logger *slog.Logger) func() {
	if interval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				st := c.Status()
				logger.Info("crawl progress",
					"pages", st.Stats.PagesCrawled,
					"failed", st.Stats.PagesFailed,
					"pending", st.Pending,
					"in_flight", st.InFlight,
					"suspended_domains", st.DomainsSuspended,
				)
			}
		}
	}()
	return func() {
		close(done)
		<-stopped
	}
}

// outputReport writes the crawl report in the requested format.
func outputReport(opts crawlOptions, rep *report.Report, stdout io.Writer) error {
	output := stdout
	if opts.reportFile != "" {
		if dir := filepath.Dir(opts.reportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.reportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case opts.jsonReport:
		w = report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case opts.markdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output)
	}
	_, err := w.Write(rep)
	return err
}
