package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/proxy-inspector/pkg/archive"
	"github.com/Sternrassler/proxy-inspector/pkg/batch"
	"github.com/Sternrassler/proxy-inspector/pkg/config"
	"github.com/Sternrassler/proxy-inspector/pkg/fileio"
	"github.com/Sternrassler/proxy-inspector/pkg/history"
	"github.com/Sternrassler/proxy-inspector/pkg/inspector"
	"github.com/Sternrassler/proxy-inspector/pkg/logging"
	"github.com/Sternrassler/proxy-inspector/pkg/metrics"
	"github.com/Sternrassler/proxy-inspector/pkg/template"
	"github.com/Sternrassler/proxy-inspector/pkg/transport"
)

const usage = `usage: proxy-inspector <command> [flags]

commands:
  intruder   replay a request once per payload
  history    follow the proxy history
  runs       list archived runs`

// pollInterval is the control loop tick of the intruder command.
const pollInterval = 20 * time.Millisecond

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	switch args[0] {
	case "intruder":
		return runIntruder(ctx, args[1:], out)
	case "history":
		return runHistory(ctx, args[1:], out)
	case "runs":
		return runRuns(ctx, args[1:], out)
	case "-h", "-help", "--help", "help":
		fmt.Fprintln(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

// setup loads the configuration and starts logging and the metrics server.
func setup(ctx context.Context, path string) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}

	logger := logging.Setup(cfg.LoggingConfig())
	if cfg.Metrics.Addr != "" {
		startMetricsServer(ctx, cfg.Metrics.Addr, logger)
	}
	return cfg, logger, nil
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func startMetricsServer(ctx context.Context, addr string, logger zerolog.Logger) {
	srv := &http.Server{Addr: addr, Handler: newMux(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("addr", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func newRedis(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
	}
	return client, nil
}

func runIntruder(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("intruder", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	requestPath := fs.String("request", "", "raw request template containing "+template.Placeholder)
	payloadPath := fs.String("payloads", "", "newline-delimited payload list")
	host := fs.String("host", "", "target host[:port]; defaults to the template's Host header")
	ssl := fs.Bool("ssl", false, "use https")
	archiveTTL := fs.Duration("archive", 0, "archive the run in Redis for this long")
	exportPath := fs.String("export", "", "write the session as JSON to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *requestPath == "" || *payloadPath == "" {
		return errors.New("intruder: -request and -payloads are required")
	}

	cfg, logger, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer logging.Close()

	text, err := fileio.ReadText(*requestPath)
	if err != nil {
		return err
	}
	raw := terminateHead(text)

	target := template.Target{Host: *host, SSL: *ssl}
	if target.Host == "" {
		target.Host = history.HostFromRaw(raw)
	}
	if target.Host == "" {
		return errors.New("intruder: no -host given and the template has no Host header")
	}

	tc, err := cfg.TransportConfig()
	if err != nil {
		return err
	}
	client, err := transport.New(tc)
	if err != nil {
		return err
	}

	insp := inspector.New(raw, "", target, inspector.Deps{Sender: client, Logger: logger})
	insp.Switch(inspector.ModeIntruder)
	in := insp.Intruder()
	if err := in.LoadPayloads(*payloadPath); err != nil {
		return err
	}

	runID, err := in.Send(ctx)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
loop:
	for in.Pending() {
		select {
		case <-ctx.Done():
			// Dispatched batches cannot be stopped; report what finished.
			logger.Warn().Str("run_id", runID.String()).Msg("Interrupted before the run completed")
			break loop
		case <-ticker.C:
			in.Poll()
		}
	}

	rows := in.AllRows()
	sort.Slice(rows, func(i, j int) bool { return rows[i].Result.Index < rows[j].Result.Index })
	for _, r := range rows {
		fmt.Fprintf(out, "%d\t%s\t%s\t%d\n", r.Result.Index, r.Payload, r.Result.StatusLabel(), r.Result.BodyLen())
	}

	if *exportPath != "" {
		if err := insp.ExportSession(*exportPath); err != nil {
			return err
		}
	}

	if *archiveTTL > 0 {
		rdb, err := newRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer rdb.Close()

		results := make([]batch.RunResult, 0, len(rows))
		for _, r := range rows {
			results = append(results, r.Result)
		}
		entry := archive.NewEntry(runID, results, in.Payloads(), *archiveTTL)
		if err := archive.NewManager(rdb).Save(ctx, entry); err != nil {
			return err
		}
		logger.Info().Str("run_id", runID.String()).Dur("ttl", *archiveTTL).Msg("Run archived")
	}
	return nil
}

// terminateHead returns a transcript whose header section ends in a CRLF
// blank line. A transcript that already has one is returned unchanged. A head
// written with bare LF line endings is rewritten with CRLF; the body after
// the first blank line is never touched.
func terminateHead(text string) string {
	if strings.Contains(text, "\r\n\r\n") {
		return text
	}

	head, body, found := strings.Cut(text, "\n\n")
	if !found {
		head = strings.TrimRight(text, " \t\r\n")
	}

	lines := strings.Split(head, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return strings.Join(lines, "\r\n") + "\r\n\r\n" + body
}

func newSource(cfg config.Config, client *transport.Client, rdb *redis.Client, logger zerolog.Logger) (history.Source, error) {
	switch cfg.History.Source {
	case config.SourceLocal:
		if !history.IsValidProjectPath(cfg.History.ProjectPath) {
			return nil, fmt.Errorf("history: %q is not a proxy project", cfg.History.ProjectPath)
		}
		return history.NewLocalSource(cfg.History.ProjectPath, logger), nil
	case config.SourceRemote:
		return history.NewRemoteSource(cfg.History.Remote, client, logger)
	case config.SourceRedis:
		return history.NewRedisSource(rdb, cfg.History.RedisKey, logger), nil
	default:
		return nil, fmt.Errorf("history: unknown source %q", cfg.History.Source)
	}
}

func runHistory(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	once := fs.Bool("once", false, "print the current history and exit")
	filterCategory := fs.String("filter", string(history.FilterHost), "filter category: host, code, source or path")
	needle := fs.String("match", "", "only print records whose filter field contains this")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer logging.Close()

	if err := cfg.Validate(); err != nil {
		return err
	}

	tc, err := cfg.HistoryTransportConfig()
	if err != nil {
		return err
	}
	client, err := transport.New(tc)
	if err != nil {
		return err
	}

	var rdb *redis.Client
	if cfg.History.Source == config.SourceRedis {
		if rdb, err = newRedis(ctx, cfg); err != nil {
			return err
		}
		defer rdb.Close()
	}

	source, err := newSource(cfg, client, rdb, logger)
	if err != nil {
		return err
	}

	match := history.Filter(history.FilterCategory(*filterCategory), *needle)
	syncer := history.NewSyncer(source, logger)
	ticker := time.NewTicker(cfg.History.PollInterval)
	defer ticker.Stop()

	printed := 0
	for {
		res := syncer.Tick(ctx)
		if res.Merged > 0 {
			// The newest batch sits at the head of the collection.
			for _, rec := range syncer.Collection().Records()[:res.Merged] {
				if match(rec) {
					printRecord(out, rec)
					printed++
				}
			}
		}
		if res.Failed() {
			logger.Warn().Err(res.Err).Msg("History source unavailable")
			if *once {
				return res.Err
			}
		}
		if *once && res.Completed && !res.Failed() {
			logger.Debug().Int("printed", printed).Msg("History printed")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printRecord(out io.Writer, rec history.Record) {
	fmt.Fprintf(out, "%d\t%s\t%s\t%d\t%d\t%s\n",
		rec.ID, rec.Method, rec.Target().URL(rec.URI), rec.StatusCode, rec.Size, rec.ResponseTime)
}

func runRuns(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	limit := fs.Int("limit", 20, "maximum number of runs listed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer logging.Close()

	rdb, err := newRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	manager := archive.NewManager(rdb)
	ids, err := manager.List(ctx, *limit)
	if err != nil {
		return err
	}

	for _, id := range ids {
		entry, err := manager.Load(ctx, id)
		if errors.Is(err, archive.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		s := archive.Summarize(entry)
		fmt.Fprintf(out, "%s\t%s\t%d requests\t%d failures\n",
			s.RunID, entry.ArchivedAt.Format(time.RFC3339), s.Requests, s.Failures)
	}
	return nil
}
