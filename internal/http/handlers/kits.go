package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"partykit/internal/domain"
	"partykit/internal/metrics"
	"partykit/internal/middleware"
	"partykit/pkg/zip"
)

var allowedUploadTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var errUploadTooLarge = errors.New("upload too large")

type progressResponse struct {
	IsRunning bool   `json:"is_running"`
	Step      string `json:"step"`
	Percent   int    `json:"percent"`
	Error     string `json:"error,omitempty"`
}

type resultResponse struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Label       string    `json:"label"`
	DownloadURL string    `json:"download_url"`
	DataURI     string    `json:"data_uri,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type configSummary struct {
	Age           string `json:"age,omitempty"`
	Features      string `json:"features,omitempty"`
	Style         string `json:"style"`
	Tone          string `json:"tone"`
	Theme         string `json:"theme,omitempty"`
	ThemePrompt   string `json:"theme_prompt,omitempty"`
	HasThemeImage bool   `json:"has_theme_image"`
	Locale        string `json:"locale"`
}

type kitResponse struct {
	ID         string           `json:"id"`
	State      string           `json:"state"`
	Progress   progressResponse `json:"progress"`
	Results    []resultResponse `json:"results"`
	Config     configSummary    `json:"config"`
	ArchiveURL string           `json:"archive_url"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func toKitResponse(k *domain.Kit, withData bool) kitResponse {
	results := make([]resultResponse, 0, len(k.Results))
	for _, img := range k.Results {
		res := resultResponse{
			ID:          img.ID,
			Type:        string(img.Type),
			Label:       img.Label,
			DownloadURL: fmt.Sprintf("/v1/kits/%s/images/%s", k.ID, img.Type),
			CreatedAt:   img.CreatedAt,
		}
		if withData {
			res.DataURI = img.DataURI
		}
		results = append(results, res)
	}
	return kitResponse{
		ID:    k.ID,
		State: string(k.State),
		Progress: progressResponse{
			IsRunning: k.Progress.IsRunning,
			Step:      k.Progress.Step,
			Percent:   k.Progress.Percent,
			Error:     k.Progress.Err,
		},
		Results: results,
		Config: configSummary{
			Age:           k.Config.Age,
			Features:      k.Config.Features,
			Style:         string(k.Config.Style),
			Tone:          string(k.Config.Tone),
			Theme:         k.Config.ThemeName,
			ThemePrompt:   k.Config.ThemePrompt,
			HasThemeImage: k.Config.HasThemeImage(),
			Locale:        k.Config.Locale,
		},
		ArchiveURL: fmt.Sprintf("/v1/kits/%s/archive", k.ID),
		CreatedAt:  k.CreatedAt,
		UpdatedAt:  k.UpdatedAt,
	}
}

// CreateKit accepts the child photo and options as multipart form data,
// stores a kit and starts generating it.
func (a *App) CreateKit(w http.ResponseWriter, r *http.Request) {
	maxUpload := a.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, 2*maxUpload+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", "expected multipart form data")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	child, err := readUpload(r, "child_photo", maxUpload)
	if err != nil {
		a.uploadError(w, "child_photo", err)
		return
	}
	if child == nil {
		a.error(w, http.StatusBadRequest, "missing_photo", "child_photo is required")
		return
	}
	theme, err := readUpload(r, "theme_photo", maxUpload)
	if err != nil {
		a.uploadError(w, "theme_photo", err)
		return
	}

	cfg := domain.GenerationConfig{
		Age:         strings.TrimSpace(r.FormValue("age")),
		Features:    strings.TrimSpace(r.FormValue("features")),
		Style:       domain.ParseStyle(r.FormValue("style")),
		Tone:        domain.ParseTone(r.FormValue("tone")),
		SourceImage: *child,
		ThemeImage:  theme,
		ThemePrompt: strings.TrimSpace(r.FormValue("theme_prompt")),
		Locale:      a.locale(r),
	}
	if name := strings.TrimSpace(r.FormValue("theme")); name != "" {
		preset, ok := a.Catalog.Theme(name)
		if !ok {
			a.error(w, http.StatusBadRequest, "unknown_theme", fmt.Sprintf("theme %q is not a preset", name))
			return
		}
		cfg.ThemeName = preset.Name
		if cfg.ThemePrompt == "" {
			cfg.ThemePrompt = preset.Prompt
		}
	}

	created, err := a.Kits.Create(r.Context(), cfg)
	if err != nil {
		a.kitError(w, err)
		return
	}
	a.Logger.Info().Str("request_id", middleware.RequestIDFromContext(r.Context())).Str("kit_id", created.ID).Str("locale", cfg.Locale).Bool("theme_image", cfg.HasThemeImage()).Msg("kit created")
	w.Header().Set("Location", "/v1/kits/"+created.ID)
	a.json(w, http.StatusAccepted, toKitResponse(created, false))
}

// GetKit returns progress and result metadata. With ?include=data the data
// URIs of generated images are inlined.
func (a *App) GetKit(w http.ResponseWriter, r *http.Request) {
	k, err := a.Kits.Get(r.Context(), chi.URLParam(r, "kit_id"))
	if err != nil {
		a.kitError(w, err)
		return
	}
	a.json(w, http.StatusOK, toKitResponse(k, r.URL.Query().Get("include") == "data"))
}

// StartRun regenerates a kit from its stored config.
func (a *App) StartRun(w http.ResponseWriter, r *http.Request) {
	k, err := a.Kits.Start(r.Context(), chi.URLParam(r, "kit_id"))
	if err != nil {
		a.kitError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, toKitResponse(k, false))
}

// KitImage downloads one generated image as PNG.
func (a *App) KitImage(w http.ResponseWriter, r *http.Request) {
	itemType, err := domain.ParseItemType(chi.URLParam(r, "item_type"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "unknown_item", err.Error())
		return
	}
	k, err := a.Kits.Get(r.Context(), chi.URLParam(r, "kit_id"))
	if err != nil {
		a.kitError(w, err)
		return
	}
	img, ok := k.Result(itemType)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "image not generated")
		return
	}
	data, err := zip.Payload(img)
	if err != nil {
		a.Logger.Error().Err(err).Str("kit_id", k.ID).Msg("decode image payload")
		a.error(w, http.StatusInternalServerError, "internal", "failed to read image")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": zip.SingleFilename(img.Label)}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// KitArchive bundles every generated image into one zip download.
func (a *App) KitArchive(w http.ResponseWriter, r *http.Request) {
	k, err := a.Kits.Get(r.Context(), chi.URLParam(r, "kit_id"))
	if err != nil {
		a.kitError(w, err)
		return
	}
	locale := a.Catalog.MatchLocale(k.Config.Locale)
	naming := a.Catalog.Archive(locale)
	archive, err := zip.ExportKit(k.Results, zip.ExportOptions{
		Folder:    naming.Folder,
		Prefix:    naming.Prefix,
		AgePrefix: naming.AgePrefix,
		Age:       k.Config.Age,
		Now:       time.Now(),
	})
	if err != nil {
		metrics.ArchivesTotal.WithLabelValues("failed").Inc()
		a.Logger.Error().Err(err).Str("kit_id", k.ID).Msg("export kit archive")
		a.error(w, http.StatusInternalServerError, "export_failed", a.Catalog.Messages(locale).ExportFailed)
		return
	}
	if archive == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	metrics.ArchivesTotal.WithLabelValues("exported").Inc()
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": archive.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive.Data)
}

func (a *App) kitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "kit not found")
	case errors.Is(err, domain.ErrRunInProgress):
		a.error(w, http.StatusConflict, "run_in_progress", "kit generation already running")
	case errors.Is(err, domain.ErrMissingPhoto):
		a.error(w, http.StatusBadRequest, "missing_photo", "child_photo is required")
	default:
		a.Logger.Error().Err(err).Msg("kit request failed")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) uploadError(w http.ResponseWriter, field string, err error) {
	if errors.Is(err, errUploadTooLarge) {
		a.error(w, http.StatusRequestEntityTooLarge, "too_large", field+" exceeds the size limit")
		return
	}
	a.error(w, http.StatusBadRequest, "invalid_image", fmt.Sprintf("%s: %v", field, err))
}

func (a *App) maxUploadBytes() int64 {
	if a.Config != nil && a.Config.MaxUploadBytes > 0 {
		return a.Config.MaxUploadBytes
	}
	return 10 << 20
}

// readUpload returns nil when the field is absent.
func readUpload(r *http.Request, field string, limit int64) (*domain.Image, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if header.Size > limit {
		return nil, errUploadTooLarge
	}
	return sniffImage(file, limit)
}

func sniffImage(file multipart.File, limit int64) (*domain.Image, error) {
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	mimeType := http.DetectContentType(data)
	if !allowedUploadTypes[mimeType] {
		return nil, fmt.Errorf("unsupported content type %s", mimeType)
	}
	return &domain.Image{Data: data, MIMEType: mimeType}, nil
}
