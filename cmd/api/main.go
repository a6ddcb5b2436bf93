package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"irisfleet.io/internal/auth"
	"irisfleet.io/internal/config"
	"irisfleet.io/internal/fleet"
	"irisfleet.io/internal/httpapi"
	"irisfleet.io/internal/obs"
	"irisfleet.io/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal().Err(err).Msg("load config")
	}

	obs.InitLogger(cfg.LogLevel, cfg.AppName)
	obs.Init()
	obs.InitBuildInfo(version, commit)
	log := obs.Logger()

	codec, err := auth.NewCodec(cfg.JWTSecret, auth.WithIssuer(cfg.AppName))
	if err != nil {
		log.Fatal().Err(err).Msg("init token codec")
	}

	var (
		db       *sql.DB
		store    auth.Store
		fleetSvc fleet.Service
	)
	if dsn := cfg.PostgresDSN(); dsn != "" {
		db, err = pg.Open(dsn, cfg.DBMaxConns)
		if err != nil {
			log.Fatal().Err(err).Msg("open db")
		}
		store = auth.NewPGStore(db)
		fleetSvc = pg.NewVehicleStore(db)
	} else {
		// DB_DISABLED=true: run fully in-memory. Useful for local poking;
		// Load refuses the knob in production posture.
		log.Warn().Msg("database disabled, using in-memory stores")
		store = auth.NewMemStore()
		fleetSvc = fleet.NewInMemory()
	}

	authSvc, err := auth.NewService(store, codec,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("init auth service")
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, authSvc, fleetSvc, httpapi.Options{
		CORSOrigins: cfg.CORSOrigins,
		RateBurst:   cfg.RateBurst,
		RatePerSec:  cfg.RatePerSec,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		obs.SetReady(true)
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("starting api")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	obs.SetReady(false)
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Info().Msg("stopped")
}
