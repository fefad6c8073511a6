package geoip

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestNewResolverEmptyPath(t *testing.T) {
	r, err := NewResolver("  ")
	if err != nil || r != nil {
		t.Fatalf("NewResolver(\"\") = %v, %v; want nil, nil", r, err)
	}
	if _, err := r.CountryCode("8.8.8.8"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CountryCode() on nil resolver error = %v, want ErrUnavailable", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() on nil resolver error = %v", err)
	}
}

func TestNewResolverMissingDatabase(t *testing.T) {
	if _, err := NewResolver(filepath.Join(t.TempDir(), "missing.mmdb")); err == nil {
		t.Fatalf("NewResolver() error = nil, want open error")
	}
}
