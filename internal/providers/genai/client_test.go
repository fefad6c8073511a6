package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func tinyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestGenerateImageSyntheticWithoutKey(t *testing.T) {
	client, err := NewClient(Options{})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if !client.Synthetic() {
		t.Fatalf("Synthetic() = false, want true")
	}

	req := ImageRequest{Prompt: "panel", AspectRatio: "16:9", RequestID: "kit-1"}
	first, err := client.GenerateImage(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if first.Format != "image/png" {
		t.Fatalf("Format = %q, want image/png", first.Format)
	}
	if first.Width <= first.Height {
		t.Fatalf("wide aspect rendered %dx%d", first.Width, first.Height)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(first.Data))
	if err != nil {
		t.Fatalf("synthetic output is not a png: %v", err)
	}
	if cfg.Width != first.Width || cfg.Height != first.Height {
		t.Fatalf("decoded %dx%d, asset says %dx%d", cfg.Width, cfg.Height, first.Width, first.Height)
	}

	second, err := client.GenerateImage(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatalf("synthetic rendering is not deterministic")
	}
}

func TestGenerateImageHonoursCancelledContext(t *testing.T) {
	client, _ := NewClient(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.GenerateImage(ctx, ImageRequest{Prompt: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("GenerateImage() error = %v, want context.Canceled", err)
	}
}

func TestGenerateImageRemoteRequestShape(t *testing.T) {
	out := tinyPNG(t, 4, 2)
	var captured struct {
		path   string
		key    string
		body   geminiGenerateContentRequest
		method string
	}
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		captured.path = r.URL.Path
		captured.key = r.Header.Get("x-goog-api-key")
		captured.method = r.Method
		if err := json.NewDecoder(r.Body).Decode(&captured.body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := geminiGenerateContentResponse{Candidates: []geminiCandidate{{
			Content: geminiContent{Parts: []geminiPart{
				{Text: "here you go"},
				{InlineData: &geminiInlineData{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(out)}},
			}},
		}}}
		body, _ := json.Marshal(resp)
		return jsonResponse(http.StatusOK, string(body)), nil
	})

	client, err := NewClient(Options{
		APIKey:     "secret",
		BaseURL:    "https://example.test/v1beta/",
		HTTPClient: &http.Client{Transport: transport},
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	asset, err := client.GenerateImage(context.Background(), ImageRequest{
		Prompt:      "  draw the topper  ",
		AspectRatio: "1:1",
		Images: []InlineImage{
			{Data: []byte("child"), MIMEType: "image/jpeg"},
			{Data: []byte("theme"), MIMEType: "image/webp"},
		},
	})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}

	if captured.method != http.MethodPost {
		t.Fatalf("method = %s, want POST", captured.method)
	}
	if captured.path != "/v1beta/models/gemini-2.5-flash-image:generateContent" {
		t.Fatalf("path = %q", captured.path)
	}
	if captured.key != "secret" {
		t.Fatalf("x-goog-api-key = %q", captured.key)
	}
	if len(captured.body.Contents) != 1 {
		t.Fatalf("contents = %d, want 1", len(captured.body.Contents))
	}
	parts := captured.body.Contents[0].Parts
	if len(parts) != 3 {
		t.Fatalf("parts = %d, want 3", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MimeType != "image/jpeg" {
		t.Fatalf("first part should be the child photo, got %+v", parts[0])
	}
	if parts[1].InlineData == nil || parts[1].InlineData.MimeType != "image/webp" {
		t.Fatalf("second part should be the theme photo, got %+v", parts[1])
	}
	if parts[2].Text != "draw the topper" {
		t.Fatalf("text part = %q", parts[2].Text)
	}
	gen := captured.body.GenerationConfig
	if gen == nil || gen.ImageConfig == nil || gen.ImageConfig.AspectRatio != "1:1" {
		t.Fatalf("generationConfig = %+v", gen)
	}

	if !bytes.Equal(asset.Data, out) {
		t.Fatalf("asset data mismatch")
	}
	if asset.Width != 4 || asset.Height != 2 {
		t.Fatalf("dimensions = %dx%d, want 4x2", asset.Width, asset.Height)
	}
}

func TestGenerateImageRemoteWithoutImagePart(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"sorry"}]},"finishReason":"IMAGE_SAFETY"}]}`), nil
	})
	client, _ := NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: transport}})

	_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if !errors.Is(err, ErrNoImage) {
		t.Fatalf("GenerateImage() error = %v, want ErrNoImage", err)
	}
	if !strings.Contains(err.Error(), "IMAGE_SAFETY") {
		t.Fatalf("error should mention finish reason: %v", err)
	}
}

func TestGenerateImageRemoteErrorStatus(t *testing.T) {
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota exhausted"}}`), nil
	})
	client, _ := NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: transport}})

	_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	if err == nil {
		t.Fatalf("GenerateImage() expected error")
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("error = %v, want api message", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests || !apiErr.Temporary() {
		t.Fatalf("error = %#v, want temporary *APIError with status 429", err)
	}
}

func TestGenerateImageDownloadsFileData(t *testing.T) {
	out := tinyPNG(t, 3, 3)
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodGet {
			if r.URL.String() != "https://files.test/blob/1" {
				t.Errorf("download url = %s", r.URL)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"image/png"}},
				Body:       io.NopCloser(bytes.NewReader(out)),
			}, nil
		}
		return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"parts":[{"fileData":{"fileUri":"https://files.test/blob/1"}}]}}]}`), nil
	})
	client, _ := NewClient(Options{APIKey: "k", HTTPClient: &http.Client{Transport: transport}})

	asset, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x", AspectRatio: "1:1"})
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if asset.Format != "image/png" || asset.URL != "https://files.test/blob/1" {
		t.Fatalf("asset = %+v", asset)
	}
}

func TestNormalizeAspect(t *testing.T) {
	tests := []struct {
		in   string
		w, h int
	}{
		{"1:1", 1024, 1024},
		{"16:9", 1920, 1080},
		{"", 1024, 1024},
		{"4:3", 1024, 768},
		{"bogus", 1024, 1024},
	}
	for _, tc := range tests {
		w, h := normalizeAspect(tc.in)
		if w != tc.w || h != tc.h {
			t.Fatalf("normalizeAspect(%q) = %dx%d, want %dx%d", tc.in, w, h, tc.w, tc.h)
		}
	}
}
