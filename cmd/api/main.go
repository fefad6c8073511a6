package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"partykit/internal/adapter/repo"
	"partykit/internal/domain/catalog"
	"partykit/internal/http/handlers"
	httpapi "partykit/internal/http/httpapi"
	"partykit/internal/infra"
	"partykit/internal/infra/geoip"
	"partykit/internal/kit"
	"partykit/internal/middleware"
	"partykit/internal/providers/image"
)

const janitorInterval = time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.Default().WithDefaultLocale(cfg.DefaultLocale)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid DEFAULT_LOCALE")
	}

	var lookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if resolver != nil {
		defer resolver.Close()
		lookup = resolver.CountryCode
	}

	gen, provider, err := image.NewGenerator(ctx, image.GeneratorOptions{
		Provider:   cfg.ImageProvider,
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		BaseURL:    cfg.GeminiBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.HTTPClientTimeout},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("image generator init failed")
	}
	if provider == image.ProviderSynthetic {
		logger.Warn().Msg("GEMINI_API_KEY not set or synthetic provider selected; images are placeholders")
	}

	client := kit.NewClient(gen, kit.ClientOptions{
		Admission: kit.NewAdmission(cfg.MaxInFlight),
		Logger:    &logger,
	})
	orch := kit.NewOrchestrator(client, kit.OrchestratorOptions{Catalog: cat, Logger: &logger})

	kits := repo.NewKitRepository(cfg.SessionTTL)
	go kits.RunJanitor(ctx, janitorInterval)

	svc := kit.NewService(kits, orch, &logger)
	app := handlers.NewApp(cfg, &logger, svc, cat)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CountryLookup:   lookup,
	})
	server := infra.NewHTTPServer(cfg, router)

	logger.Info().Str("provider", provider).Str("model", cfg.GeminiModel).Msgf("API listening on %s", server.Addr())
	if err := server.Run(ctx, cfg.HTTPIdleTimeout); err != nil {
		logger.Error().Err(err).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("kit runs did not stop in time")
	}
	logger.Info().Msg("server stopped")
}
