package middleware

import (
	"context"
	"net/http"
	"strings"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// LocaleMatcher maps raw locale preferences onto a supported locale. An
// empty input yields the default locale.
type LocaleMatcher func(raw ...string) string

// countryLocales hints a locale from the visitor's country when the request
// carries no language preference.
var countryLocales = map[string]string{
	"BR": "pt-BR",
	"PT": "pt-BR",
	"AO": "pt-BR",
	"MZ": "pt-BR",
}

func I18N(match LocaleMatcher, lookup CountryLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			locale := detectLocale(r, match, country)
			ctx := context.WithValue(r.Context(), LocaleKey, locale)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			w.Header().Set("Content-Language", locale)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLocale(r *http.Request, match LocaleMatcher, country string) string {
	if match == nil {
		match = func(raw ...string) string {
			for _, v := range raw {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
			return "pt-BR"
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("locale")); v != "" {
		return match(v)
	}
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		return match(v)
	}
	if v := strings.TrimSpace(r.Header.Get("Accept-Language")); v != "" {
		return match(v)
	}
	if hinted, ok := countryLocales[strings.ToUpper(country)]; ok {
		return match(hinted)
	}
	if country != "" {
		return match("en")
	}
	return match()
}

// LocaleFromContext returns the locale chosen for the request, or an empty
// string outside the I18N middleware.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(LocaleKey).(string); ok {
		return v
	}
	return ""
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

func localeRegion(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" {
			continue
		}
		if idx := strings.IndexAny(token, "-_"); idx > 0 && idx < len(token)-1 {
			return strings.ToUpper(token[idx+1:])
		}
	}
	return ""
}
