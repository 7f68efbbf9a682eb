package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitbook.org/internal/auth"
	"fitbook.org/internal/booking"
	"fitbook.org/internal/config"
	"fitbook.org/internal/events"
	"fitbook.org/internal/googleauth"
	"fitbook.org/internal/httpapi"
	"fitbook.org/internal/obs"
)

var version = "0.3.0"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := auth.OpenPG(cfg.PGDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	catalog, err := loadCatalog(cfg.PermissionsFile)
	if err != nil {
		log.Fatalf("permission catalog: %v", err)
	}

	tokens, err := auth.NewTokenService(store.Users(),
		cfg.JWTAccessSecret, cfg.JWTRefreshSecret,
		auth.WithAccessTTL(cfg.AccessTTL),
		auth.WithRefreshTTL(cfg.RefreshTTL),
	)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	var authOpts []auth.ServiceOption
	if cfg.GoogleClientID != "" {
		verifier, err := googleauth.New(context.Background(), cfg.GoogleClientID)
		if err != nil {
			log.Fatalf("google verifier: %v", err)
		}
		authOpts = append(authOpts, auth.WithExternalVerifier(verifier))
	}
	authSvc, err := auth.NewService(store.Users(), tokens, authOpts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	guard, err := auth.NewGuard(catalog, store.Memberships())
	if err != nil {
		log.Fatalf("guard: %v", err)
	}
	businessSvc, err := auth.NewBusinessService(store.Businesses())
	if err != nil {
		log.Fatalf("business service: %v", err)
	}
	membershipSvc, err := auth.NewMembershipService(store.Memberships())
	if err != nil {
		log.Fatalf("membership service: %v", err)
	}
	workoutSvc := booking.NewService(booking.NewPGStore(store.DB()))

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, version, httpapi.Deps{
		Auth:        authSvc,
		Tokens:      tokens,
		Users:       store.Users(),
		Guard:       guard,
		Businesses:  businessSvc,
		Memberships: membershipSvc,
		Workouts:    workoutSvc,
		Stream:      events.New(),

		RateLimitBurst:     cfg.RateLimitBurst,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting fitbook-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}

func loadCatalog(path string) (*auth.Catalog, error) {
	if path != "" {
		return auth.LoadCatalogFile(path)
	}
	return auth.LoadCatalog(nil)
}
