package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/julianbeese/immo_search/internal/backend"
	"github.com/julianbeese/immo_search/internal/config"
	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/fallback"
	"github.com/julianbeese/immo_search/internal/filter"
	"github.com/julianbeese/immo_search/internal/geo"
	"github.com/julianbeese/immo_search/internal/ingest"
	"github.com/julianbeese/immo_search/internal/messenger"
	"github.com/julianbeese/immo_search/internal/notifier/telegram"
	"github.com/julianbeese/immo_search/internal/repository/sqlite"
	"github.com/julianbeese/immo_search/internal/scheduler"
	"github.com/julianbeese/immo_search/internal/session"
	"github.com/julianbeese/immo_search/internal/throttle"
)

// assignmentFlags collects repeated -f key=value flags
type assignmentFlags []string

func (a *assignmentFlags) String() string { return strings.Join(*a, " ") }

func (a *assignmentFlags) Set(v string) error {
	*a = append(*a, v)
	return nil
}

func main() {
	// Load .env file if present (ignores error if not found)
	_ = godotenv.Load()                   // .env in current directory
	_ = godotenv.Load("deployments/.env") // fallback to deployments/.env

	// Parse command line flags
	var filters assignmentFlags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	runOnce := flag.Bool("once", false, "Load listings, print the filtered results and exit")
	rentFlag := flag.String("rent", "", "Rent type: longue_duree or saisonniere (default from config)")
	visitID := flag.String("visit", "", "Request a visit for this property id (with -once)")
	flag.Var(&filters, "f", "Filter assignment key=value, repeatable (keys: "+strings.Join(filter.AssignmentKeys, ", ")+")")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	rentType := cfg.Search.DefaultRentType
	if *rentFlag != "" {
		rt, ok := domain.ParseRentType(*rentFlag)
		if !ok {
			logger.Error("unknown rent type", "rent", *rentFlag)
			os.Exit(1)
		}
		rentType = rt
	}

	defaults := domain.DefaultFilterState(cfg.Search.DefaultRadiusKm)
	state, err := filter.ParseAssignments(defaults, filters)
	if err != nil {
		logger.Error("invalid filter", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"poll_interval", cfg.PollInterval,
		"backend", cfg.Backend.BaseURL,
		"rent_type", rentType,
		"telegram_enabled", cfg.Telegram.Enabled,
		"alerts_enabled", cfg.Alerts.Enabled,
	)

	// Ensure data directory exists
	dataDir := filepath.Dir(cfg.DatabasePath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	// Initialize repository
	repo, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	logger.Info("database initialized", "path", cfg.DatabasePath)

	ingestOpts := ingest.Options{RentStatus: cfg.Search.RentStatus}

	// Initialize backend client; without one the session runs on cached and sample data
	var listingBackend session.Backend
	if cfg.Backend.BaseURL != "" {
		client, err := backend.NewClient(backend.Options{
			BaseURL: cfg.Backend.BaseURL,
			Token:   cfg.Backend.Token,
			Cookie:  cfg.Backend.Cookie,
			Timeout: cfg.Backend.Timeout,
			RateLimiter: throttle.NewRateLimiter(
				cfg.Backend.MaxRequestsPerMinute,
				cfg.Backend.MinDelay,
				cfg.Backend.MaxDelay,
			),
			Ingest: ingestOpts,
			Logger: logger,
		})
		if err != nil {
			logger.Error("failed to initialize backend client", "error", err)
			os.Exit(1)
		}
		listingBackend = client
	} else {
		logger.Warn("no backend configured, using cached and sample listings")
	}

	// Initialize filter pipeline
	filterEngine := filter.NewEngine(cfg.Search.UserLocation)
	pipeline := filter.NewPipeline(filterEngine, cfg.Search.CacheTTL, cfg.Search.CacheCapacity)

	// Initialize Telegram bot controller (for commands)
	botController, err := telegram.NewBotController(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.Enabled && !*runOnce)
	if err != nil {
		logger.Error("failed to initialize Telegram bot controller", "error", err)
		os.Exit(1)
	}
	botController.SetLogger(logger)

	// Create notifier from controller
	notifier := telegram.NewNotifierFromController(botController)

	// Initialize message generator
	msgGenerator, err := messenger.NewGenerator(cfg.Message.TemplatePath, cfg.Message.Sender)
	if err != nil {
		logger.Error("failed to initialize message generator", "error", err)
		os.Exit(1)
	}

	sess := session.New(session.Options{
		Pipeline: pipeline,
		Backend:  listingBackend,
		Store:    repo,
		Sample: func(rt domain.RentType) ([]domain.PropertyRecord, error) {
			return fallback.Records(rt, ingestOpts)
		},
		Notifier: notifier,
		Messages: msgGenerator,
		Logger:   logger,
	})

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *runOnce {
		if err := runOnceMode(ctx, sess, rentType, state, *visitID, os.Stdout); err != nil {
			logger.Error("run failed", "error", err)
			os.Exit(1)
		}
		return
	}

	var alert *domain.FilterState
	if cfg.Alerts.Enabled {
		a, err := filter.ParseAssignments(defaults, cfg.Alerts.Filters)
		if err != nil {
			logger.Error("invalid alert filter", "error", err)
			os.Exit(1)
		}
		alert = &a
	}

	// Create scheduler
	sched := scheduler.NewScheduler(
		scheduler.Options{
			Interval:        cfg.PollInterval,
			DefaultRentType: rentType,
			Alert:           alert,
			IsQuietTime:     cfg.IsQuietTime,
		},
		sess,
		filterEngine,
		notifier,
		repo,
		logger,
	)

	// Connect bot controller to session
	botController.SetBrowser(sess, state, cfg.Search.PageSize)
	botController.SetCallbacks(func() string {
		stats, err := repo.Stats(context.Background())
		if err != nil {
			return "Statistiques indisponibles."
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, `📊 <b>Base locale</b>

<b>Instantanés :</b> %d (%d annonces)
<b>Demandes de visite :</b> %d
<b>Activités :</b> %d`, stats.Snapshots, stats.Records, stats.VisitRequests, stats.Activities)

		if recent, err := repo.RecentActivity(context.Background(), 3); err == nil && len(recent) > 0 {
			sb.WriteString("\n\n<b>Dernières activités :</b>")
			for _, a := range recent {
				fmt.Fprintf(&sb, "\n• %s %s %s", a.CreatedAt.Format("02/01 15:04"), a.Action, a.EntityID)
			}
		}
		return sb.String()
	})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
		sched.Stop()
	}()

	// Start Telegram command listener
	if botController.IsEnabled() {
		botController.StartCommandListener(ctx)
		logger.Info("Telegram command listener started")
	}

	if notifier.IsEnabled() {
		startupMsg := fmt.Sprintf(`🚀 <b>Recherche démarrée</b>

<b>Location :</b> %s
<b>Intervalle :</b> %s
<b>Alertes :</b> %t

Utilisez /help pour la liste des commandes.`, rentType, cfg.PollInterval, alert != nil)

		notifier.SendRawMessage(ctx, startupMsg)
	}

	logger.Info("starting scheduler", "poll_interval", cfg.PollInterval)
	if err := sched.Start(ctx); err != nil {
		logger.Error("scheduler failed to start", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("shutdown complete")
}

func runOnceMode(ctx context.Context, sess *session.Session, rentType domain.RentType, state domain.FilterState, visitID string, out io.Writer) error {
	res, err := sess.Load(ctx, rentType)
	if err != nil {
		return err
	}
	if err := sess.SeedLedger(ctx); err != nil {
		slog.Warn("ledger seed incomplete", "error", err)
	}
	fmt.Fprintf(out, "%d listings loaded from %s\n\n", res.Count, res.Source)

	if visitID != "" {
		req, err := sess.RequestVisit(ctx, visitID)
		switch {
		case errors.Is(err, domain.ErrAlreadyRequested):
			fmt.Fprintf(out, "A visit was already requested for %s\n", visitID)
			return nil
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "Visit requested for %s (request %s, %s)\n", visitID, req.ID, req.Status)
		return nil
	}

	printResults(out, sess.Results(state), sess.Engine().Origin(), sess.HasRequested)
	return nil
}

func printResults(out io.Writer, records []domain.PropertyRecord, origin domain.Location, requested func(string) bool) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tCITY\tPRICE\tSURFACE\tDIST\tVISIT")
	for _, r := range records {
		dist := "-"
		if r.HasLocation() {
			dist = fmt.Sprintf("%.1f km", geo.DistanceKm(origin.Lat, origin.Lon, *r.Latitude, *r.Longitude))
		}
		visit := ""
		if requested(r.ID) {
			visit = "requested"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Title, r.City, optional(r.Price, "€"), optional(r.Surface, "m²"), dist, visit)
	}
	w.Flush()
	fmt.Fprintf(out, "\n%d results\n", len(records))
}

func optional(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g %s", *v, unit)
}
