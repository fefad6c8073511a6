package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"partykit/internal/infra"
)

// ErrNoImage is returned when Gemini answered without any image part.
var ErrNoImage = errors.New("genai: response contained no image")

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Gemini generateContent endpoint. Without
// an API key it renders deterministic synthetic PNGs so local runs and CI
// exercise the whole pipeline offline.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// InlineImage is a binary image attached to the request.
type InlineImage struct {
	Data     []byte
	MIMEType string
}

// ImageRequest represents the information required to generate one image.
type ImageRequest struct {
	Prompt      string
	AspectRatio string
	Images      []InlineImage
	RequestID   string
}

// ImageAsset is the normalized representation returned by the Gemini client.
type ImageAsset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-image"
)

// NewClient applies defaults for every zero option. An empty API key puts
// the client in synthetic mode.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(firstNonEmpty(opts.BaseURL, DefaultBaseURL), "/")
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("genai: invalid base url: %w", err)
	}
	c := &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      firstNonEmpty(opts.Model, DefaultModel),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	if c.logger == nil {
		discard := zerolog.New(io.Discard)
		c.logger = &discard
	}
	return c, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client renders local placeholder images.
func (c *Client) Synthetic() bool {
	return c.apiKey == ""
}

// GenerateImage sends exactly one generateContent request and returns the
// first image part of the response.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Synthetic() {
		return c.syntheticImage(req), nil
	}
	return c.remoteGenerateImage(ctx, req)
}

func (c *Client) remoteGenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	parts := make([]geminiPart, 0, len(req.Images)+1)
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			continue
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: firstNonEmpty(img.MIMEType, "image/jpeg"),
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	parts = append(parts, geminiPart{Text: strings.TrimSpace(req.Prompt)})

	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}
	if aspect := strings.TrimSpace(req.AspectRatio); aspect != "" {
		payload.GenerationConfig.ImageConfig = &geminiImageConfig{AspectRatio: aspect}
	}

	response, err := c.generateContent(ctx, payload)
	if err != nil {
		return nil, err
	}

	width, height := normalizeAspect(req.AspectRatio)
	for _, candidate := range response.Candidates {
		for _, part := range candidate.Content.Parts {
			asset, err := c.decodeInlineAsset(ctx, part)
			if err != nil {
				return nil, err
			}
			if len(asset.Data) == 0 {
				continue
			}
			w, h := decodeImageDimensions(asset.Data)
			if w == 0 || h == 0 {
				w, h = width, height
			}

			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.model).
				Int("bytes", len(asset.Data)).
				Msg("genai: generated remote image asset")

			return &ImageAsset{
				URL:    asset.URL,
				Format: firstNonEmpty(asset.Format, "image/png"),
				Width:  w,
				Height: h,
				Data:   asset.Data,
			}, nil
		}
	}

	finish := ""
	if len(response.Candidates) > 0 {
		finish = response.Candidates[0].FinishReason
	}
	if finish != "" {
		return nil, fmt.Errorf("%w (finish reason %s)", ErrNoImage, finish)
	}
	return nil, ErrNoImage
}

type inlineAsset struct {
	Data   []byte
	Format string
	URL    string
}

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

func apiErrorFrom(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	var body geminiErrorResponse
	if json.Unmarshal(data, &body) == nil && body.Error.Message != "" {
		apiErr.Message = body.Error.Message
	}
	return apiErr
}

func (c *Client) do(ctx context.Context, method, target string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("genai: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("genai: %s %s: %w", method, req.URL.Path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, apiErrorFrom(resp)
	}
	return resp, nil
}

func (c *Client) generateContent(ctx context.Context, payload geminiGenerateContentRequest) (*geminiGenerateContentResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("genai: encode request: %w", err)
	}
	endpoint := c.baseURL + "/models/" + url.PathEscape(c.model) + ":generateContent"
	resp, err := c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out geminiGenerateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("genai: decode response: %w", err)
	}
	return &out, nil
}

func (c *Client) decodeInlineAsset(ctx context.Context, part geminiPart) (inlineAsset, error) {
	if part.InlineData != nil && part.InlineData.Data != "" {
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return inlineAsset{}, fmt.Errorf("decode inline data: %w", err)
		}
		return inlineAsset{Data: data, Format: part.InlineData.MimeType}, nil
	}

	if part.FileData != nil && part.FileData.FileURI != "" {
		data, mime, err := c.downloadFile(ctx, part.FileData.FileURI)
		if err != nil {
			return inlineAsset{}, err
		}
		return inlineAsset{Data: data, Format: firstNonEmpty(part.FileData.MimeType, mime), URL: part.FileData.FileURI}, nil
	}

	return inlineAsset{}, nil
}

// downloadFile fetches a fileData part; relative URIs resolve against the
// API base URL.
func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if u, err := url.Parse(uri); err != nil || !u.IsAbs() {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	resp, err := c.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("genai: download file: %w", err)
	}
	defer resp.Body.Close()

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("genai: read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
