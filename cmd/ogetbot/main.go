package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ogettransport/oget-bot/internal/bot/admin"
	"github.com/ogettransport/oget-bot/internal/bot/dialogs"
	"github.com/ogettransport/oget-bot/internal/bot/engine"
	"github.com/ogettransport/oget-bot/internal/bot/telegram"
	"github.com/ogettransport/oget-bot/internal/cityapi"
	"github.com/ogettransport/oget-bot/internal/common/config"
	"github.com/ogettransport/oget-bot/internal/common/db"
	"github.com/ogettransport/oget-bot/internal/common/logger"
	"github.com/ogettransport/oget-bot/internal/gtfsrealtime"
	"github.com/ogettransport/oget-bot/internal/gtfsstatic"
	"github.com/ogettransport/oget-bot/internal/metrics"
	"github.com/ogettransport/oget-bot/internal/sheets"
	"github.com/ogettransport/oget-bot/internal/stopmatch"
	"github.com/ogettransport/oget-bot/internal/storage"
	"github.com/ogettransport/oget-bot/internal/tickets"
	"github.com/ogettransport/oget-bot/internal/webhook"
)

const (
	startupRefreshBudget = 5 * time.Minute
	resyncInterval       = 10 * time.Minute
)

func main() {
	// .env is optional; real deployments configure the environment
	// directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.New(
		logger.ParseLogLevel(cfg.Logging.Level),
		logger.ConsoleWriter(),
		logger.FileWriter(cfg.Logging.FilePath),
	)

	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration", "error", err)
	}

	log.Info("OGET bot starting",
		"log_level", cfg.Logging.Level,
		"gtfs_url", cfg.GTFS.BaseURL,
		"city", cfg.CityAPI.City)

	database, err := db.Connect(cfg.Database.Path, log)
	if err != nil {
		log.Fatal("Failed to open database", "error", err)
	}
	defer database.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	collector := metrics.NewCollector()
	store := storage.New(database.Conn(), log)

	// Static snapshot first: the process cannot serve without one.
	fetcher := gtfsstatic.NewHTTPFetcher(cfg.GTFS.BaseURL, cfg.GTFS.APIKey, log)
	provider := gtfsstatic.NewProvider(fetcher, cfg.GTFS.RefreshInterval, log, collector)
	if _, err := provider.RefreshWithRetry(ctx, startupRefreshBudget); err != nil {
		log.Fatal("Initial static feed refresh failed", "error", err)
	}

	matcher := stopmatch.New(provider)
	poller := gtfsrealtime.NewPoller(gtfsrealtime.Config{
		BaseURL:      cfg.GTFS.BaseURL,
		APIKey:       cfg.GTFS.APIKey,
		PollInterval: cfg.GTFS.PollInterval,
		InsecureTLS:  cfg.GTFS.InsecureTLS,
	}, provider, matcher, log, collector)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		provider.Run(ctx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Start(ctx)
	}()

	sheetAdapter, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   cfg.Sheets.SpreadsheetID,
		CredentialsFile: cfg.Sheets.CredentialsFile,
		Workers:         cfg.Sheets.Workers,
		CacheTTL:        cfg.Sheets.CacheTTL,
		Timeout:         cfg.Sheets.Timeout,
	}, log, collector)
	if err != nil {
		log.Fatal("Failed to create spreadsheet adapter", "error", err)
	}
	defer sheetAdapter.Close()

	city := cityapi.New(cityapi.Config{
		BaseURL:  cfg.CityAPI.BaseURL,
		Login:    cfg.CityAPI.Login,
		Password: cfg.CityAPI.Password,
		City:     cfg.CityAPI.City,
		Timeout:  cfg.CityAPI.Timeout,
	}, log)
	if info, err := city.MyInfo(ctx); err != nil {
		log.Warn("City API credentials check failed", "error", err)
	} else {
		log.Info("City API ready", "login", info.Login, "city", info.City)
	}

	transport, err := telegram.New(cfg.Telegram.Token, log)
	if err != nil {
		log.Fatal("Failed to create messaging transport", "error", err)
	}

	gate := admin.NewGate(cfg.Admin.MuseumAdminID, cfg.Admin.AdminIDs)
	ticketSvc := tickets.NewService(store, sheetAdapter, log, collector)

	// Bookings whose sheet append failed are retried in the background.
	var resyncer tickets.Resyncer = tickets.NewBookingResyncer(store, sheetAdapter, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(resyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := resyncer.Resync(ctx); err != nil {
					log.Warn("Booking resync failed", "error", err)
				}
			}
		}
	}()

	eng := engine.New(transport, log, collector)
	dialogs.Register(eng, dialogs.Deps{
		Log:         log,
		Static:      provider,
		Realtime:    poller,
		Matcher:     matcher,
		City:        city,
		Sheets:      sheetAdapter,
		Store:       store,
		Tickets:     ticketSvc,
		Gate:        gate,
		Broadcaster: admin.NewBroadcaster(transport, store, log, collector),
		Notifier:    admin.NewNotifier(transport, cfg.Admin.MuseumAdminID, log),
		Metrics:     collector,
	})
	defer eng.Close()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for upd := range transport.Updates(ctx) {
			eng.Dispatch(ctx, upd)
		}
		log.Info("Update stream closed")
	}()

	var server *webhook.Server
	if cfg.Webhook.Enabled {
		server = webhook.New(cfg.Webhook.ListenAddr, eng,
			healthProbe{provider: provider, poller: poller}, log, collector)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(); err != nil {
				log.Error("HTTP server error", "error", err)
			}
		}()
	}

	<-sigChan
	log.Info("Shutdown signal received")

	cancel()
	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", "error", err)
		}
		shutdownCancel()
	}
	wg.Wait()

	log.Info("OGET bot stopped")
}

// healthProbe glues the data plane to the /healthz contract.
type healthProbe struct {
	provider *gtfsstatic.Provider
	poller   *gtfsrealtime.Poller
}

func (h healthProbe) SnapshotGeneratedAt() time.Time {
	snap := h.provider.Snapshot()
	if snap == nil {
		return time.Time{}
	}
	return snap.GeneratedAt
}

func (h healthProbe) LastPollAt() time.Time {
	return h.poller.LastPollAt()
}
