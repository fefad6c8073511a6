package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"partykit/internal/domain/catalog"
	"partykit/internal/infra"
	"partykit/internal/kit"
	"partykit/internal/middleware"
)

type App struct {
	Config  *infra.Config
	Logger  *infra.Logger
	Kits    *kit.Service
	Catalog *catalog.Catalog
}

func NewApp(cfg *infra.Config, logger *infra.Logger, kits *kit.Service, cat *catalog.Catalog) *App {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	if cat == nil {
		cat = catalog.Default()
	}
	return &App{Config: cfg, Logger: logger, Kits: kits, Catalog: cat}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorBody{"error": {Code: code, Message: message}})
}

func (a *App) locale(r *http.Request) string {
	return a.Catalog.MatchLocale(middleware.LocaleFromContext(r.Context()))
}
