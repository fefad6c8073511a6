package handlers

import (
	"net/http"

	"partykit/internal/providers/image"
)

type itemResponse struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	AspectRatio string `json:"aspect_ratio"`
}

// Themes lists the preset party themes.
func (a *App) Themes(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": a.Catalog.Themes()})
}

// Items lists the kit items in generation order, labelled for the request locale.
func (a *App) Items(w http.ResponseWriter, r *http.Request) {
	locale := a.locale(r)
	specs := a.Catalog.Items(locale)
	items := make([]itemResponse, 0, len(specs))
	for _, spec := range specs {
		items = append(items, itemResponse{
			Type:        string(spec.Type),
			Label:       spec.Label,
			AspectRatio: string(image.AspectRatioFor(spec.Type)),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"locale": locale, "items": items})
}
