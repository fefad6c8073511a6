package kit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"partykit/internal/adapter/repo"
	"partykit/internal/domain"
	"partykit/internal/providers/genai"
	"partykit/internal/providers/image"
)

func TestMain(m *testing.M) {
	// genai's opencensus dependency starts a stats worker from init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func testConfig() domain.GenerationConfig {
	return domain.GenerationConfig{
		Age:         "5",
		Features:    "curly blonde hair",
		Style:       domain.StylePixar,
		Tone:        domain.ToneMagical,
		SourceImage: domain.Image{Data: []byte("child-photo"), MIMEType: "image/jpeg"},
		Locale:      "pt-BR",
	}
}

// stubItems scripts the per-item outcome of a run.
type stubItems struct {
	mu     sync.Mutex
	calls  []domain.ItemType
	fail   map[domain.ItemType]bool
	abort  map[domain.ItemType]error
	before func(domain.ItemType)
}

func (s *stubItems) GenerateItem(ctx context.Context, item domain.ItemType, cfg domain.GenerationConfig) (*ItemImage, error) {
	if s.before != nil {
		s.before(item)
	}
	s.mu.Lock()
	s.calls = append(s.calls, item)
	s.mu.Unlock()
	if err := s.abort[item]; err != nil {
		return nil, err
	}
	if s.fail[item] {
		return nil, nil
	}
	data := []byte("png-" + string(item))
	return &ItemImage{Data: data, MIMEType: "image/png", DataURI: DataURIPrefix + "eA=="}, nil
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) observe(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.Progress.Percent)
	}
	return out
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestPercent(t *testing.T) {
	want := []int{0, 13, 25, 38, 50, 63, 75, 88}
	for i, w := range want {
		require.Equal(t, w, Percent(i, domain.KitSize), "index %d", i)
	}
	require.Equal(t, 0, Percent(3, 0))
}

func TestRunGeneratesFullKitInOrder(t *testing.T) {
	stub := &stubItems{}
	rec := &recorder{}
	orch := NewOrchestrator(stub, OrchestratorOptions{Now: fixedClock()})

	final, report, err := orch.Run(context.Background(), testConfig(), rec.observe)
	require.NoError(t, err)

	require.Equal(t, domain.ItemTypes(), stub.calls)
	require.Len(t, final.Results, domain.KitSize)
	wantLabels := []string{
		"Personagem Principal", "Expressões Faciais", "Topper de Bolo", "Tags de Lembrancinha",
		"Adesivos", "Convite Digital", "Número da Idade", "Painel Decorativo",
	}
	seen := map[string]bool{}
	for i, img := range final.Results {
		require.Equal(t, domain.ItemTypes()[i], img.Type)
		require.Equal(t, wantLabels[i], img.Label)
		require.True(t, strings.HasPrefix(img.DataURI, "data:image/png;base64,"))
		require.False(t, seen[img.ID], "duplicate id %s", img.ID)
		seen[img.ID] = true
		require.Equal(t, string(img.Type)+"-1717236000000", img.ID)
	}

	require.False(t, final.Progress.IsRunning)
	require.Equal(t, 100, final.Progress.Percent)
	require.Equal(t, "Kit Completo!", final.Progress.Step)
	require.Empty(t, final.Progress.Err)

	require.Equal(t, domain.KitSize, report.Attempted)
	require.Equal(t, domain.KitSize, report.Generated)
	require.Empty(t, report.Skipped)
	require.False(t, report.Aborted)

	percents := rec.percents()
	for i := 1; i < len(percents); i++ {
		require.GreaterOrEqual(t, percents[i], percents[i-1], "percent decreased at %d: %v", i, percents)
	}
	for _, p := range percents[:len(percents)-1] {
		require.Less(t, p, 100, "100 reported before completion: %v", percents)
	}
	require.Equal(t, 100, percents[len(percents)-1])
}

func TestRunRevealsResultsIncrementally(t *testing.T) {
	rec := &recorder{}
	orch := NewOrchestrator(&stubItems{}, OrchestratorOptions{Now: fixedClock()})
	_, _, err := orch.Run(context.Background(), testConfig(), rec.observe)
	require.NoError(t, err)

	counts := map[int]bool{}
	for _, s := range rec.snaps {
		counts[len(s.Results)] = true
		if s.Progress.IsRunning {
			require.Less(t, len(s.Results), domain.KitSize+1)
		}
	}
	for n := 0; n <= domain.KitSize; n++ {
		require.True(t, counts[n], "no snapshot with %d results", n)
	}
	require.True(t, strings.HasPrefix(rec.snaps[1].Progress.Step, "Criando Personagem Principal"))
}

func TestRunSkipsSoftFailures(t *testing.T) {
	stub := &stubItems{fail: map[domain.ItemType]bool{domain.ItemPanel: true}}
	orch := NewOrchestrator(stub, OrchestratorOptions{Now: fixedClock()})

	final, report, err := orch.Run(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	require.Len(t, final.Results, domain.KitSize-1)
	for _, img := range final.Results {
		require.NotEqual(t, domain.ItemPanel, img.Type)
	}
	require.Equal(t, 100, final.Progress.Percent)
	require.False(t, final.Progress.IsRunning)
	require.Equal(t, []domain.ItemType{domain.ItemPanel}, report.Skipped)
}

func TestRunAllItemsFailStillCompletes(t *testing.T) {
	fail := map[domain.ItemType]bool{}
	for _, it := range domain.ItemTypes() {
		fail[it] = true
	}
	orch := NewOrchestrator(&stubItems{fail: fail}, OrchestratorOptions{})
	final, report, err := orch.Run(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	require.Empty(t, final.Results)
	require.Equal(t, 100, final.Progress.Percent)
	require.Len(t, report.Skipped, domain.KitSize)
}

func TestRunAbortKeepsPartialResults(t *testing.T) {
	boom := errors.New("boom")
	stub := &stubItems{abort: map[domain.ItemType]error{domain.ItemTags: boom}}
	rec := &recorder{}
	orch := NewOrchestrator(stub, OrchestratorOptions{Now: fixedClock()})

	final, report, err := orch.Run(context.Background(), testConfig(), rec.observe)
	require.ErrorIs(t, err, boom)
	require.True(t, report.Aborted)
	require.Len(t, final.Results, 3)
	require.False(t, final.Progress.IsRunning)
	require.NotEmpty(t, final.Progress.Err)
	require.Less(t, final.Progress.Percent, 100)
	require.Len(t, stub.calls, 4, "no item after the abort should be attempted")

	for _, p := range rec.percents() {
		require.Less(t, p, 100)
	}
}

func TestRunUsesLocaleLabels(t *testing.T) {
	cfg := testConfig()
	cfg.Locale = "en-US"
	orch := NewOrchestrator(&stubItems{}, OrchestratorOptions{})
	final, _, err := orch.Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.Equal(t, "Main Character", final.Results[0].Label)
	require.Equal(t, "Kit complete!", final.Progress.Step)
}

// captureGenerator records image requests.
type captureGenerator struct {
	mu       sync.Mutex
	requests []image.GenerateRequest
	asset    *image.Asset
	err      error
	delay    time.Duration
	active   int32
	peak     int32
}

func (g *captureGenerator) Generate(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
	n := atomic.AddInt32(&g.active, 1)
	defer atomic.AddInt32(&g.active, -1)
	for {
		peak := atomic.LoadInt32(&g.peak)
		if n <= peak || atomic.CompareAndSwapInt32(&g.peak, peak, n) {
			break
		}
	}
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()
	if g.delay > 0 {
		select {
		case <-time.After(g.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return g.asset, g.err
}

func TestClientGenerateItemBuildsRequest(t *testing.T) {
	gen := &captureGenerator{asset: &image.Asset{Format: "image/png", Data: []byte{1, 2, 3}}}
	client := NewClient(gen, ClientOptions{})

	cfg := testConfig()
	cfg.ThemeImage = &domain.Image{Data: []byte("theme"), MIMEType: "image/png"}

	img, err := client.GenerateItem(WithRequestID(context.Background(), "kit-1"), domain.ItemPanel, cfg)
	require.NoError(t, err)
	require.NotNil(t, img)
	require.Equal(t, "data:image/png;base64,AQID", img.DataURI)
	require.Equal(t, []byte{1, 2, 3}, img.Data)

	require.Len(t, gen.requests, 1)
	req := gen.requests[0]
	require.Equal(t, "16:9", req.AspectRatio)
	require.Equal(t, "kit-1/panel", req.RequestID)
	require.Len(t, req.Images, 2)
	require.Equal(t, "image/jpeg", req.Images[0].MIME)
	require.Equal(t, []byte("theme"), req.Images[1].Data)
	require.Contains(t, req.Prompt, "curly blonde hair")
	require.Contains(t, req.Prompt, "ESTIMATED AGE: 5.")
	require.Contains(t, req.Prompt, "Pixar")
	require.Contains(t, req.Prompt, "magical sparkles")
}

func TestClientGenerateItemSoftFailures(t *testing.T) {
	tests := []struct {
		name string
		gen  *captureGenerator
	}{
		{name: "provider error", gen: &captureGenerator{err: errors.New("status 500")}},
		{name: "no image", gen: &captureGenerator{err: image.ErrNoImage}},
		{name: "nil asset", gen: &captureGenerator{}},
		{name: "empty data", gen: &captureGenerator{asset: &image.Asset{Format: "image/png"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			img, err := NewClient(tc.gen, ClientOptions{}).GenerateItem(context.Background(), domain.ItemTopper, testConfig())
			require.NoError(t, err)
			require.Nil(t, img)
			require.Len(t, tc.gen.requests, 1, "exactly one request, no retry")
		})
	}
}

func TestClientGenerateItemLogLevelFollowsFailureKind(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{name: "rate limited", err: &genai.APIError{StatusCode: http.StatusTooManyRequests}, level: "warn"},
		{name: "upstream outage", err: fmt.Errorf("gemini: %w", &genai.APIError{StatusCode: http.StatusServiceUnavailable}), level: "warn"},
		{name: "rejected request", err: &genai.APIError{StatusCode: http.StatusBadRequest, Message: "invalid argument"}, level: "error"},
		{name: "no image", err: image.ErrNoImage, level: "error"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)
			client := NewClient(&captureGenerator{err: tc.err}, ClientOptions{Logger: &logger})

			img, err := client.GenerateItem(context.Background(), domain.ItemStickers, testConfig())
			require.NoError(t, err)
			require.Nil(t, img)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			require.Equal(t, tc.level, entry["level"])
			require.Equal(t, string(domain.ItemStickers), entry["item_type"])
		})
	}
}

func TestClientGenerateItemHardFailures(t *testing.T) {
	gen := &captureGenerator{asset: &image.Asset{Data: []byte{1}}}
	client := NewClient(gen, ClientOptions{})

	_, err := client.GenerateItem(context.Background(), domain.ItemType("banner"), testConfig())
	require.ErrorIs(t, err, domain.ErrUnknownItemType)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.GenerateItem(ctx, domain.ItemTopper, testConfig())
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, gen.requests)
}

func TestAdmissionBoundsInFlightRequests(t *testing.T) {
	for _, limit := range []int{0, 1, 2} {
		gen := &captureGenerator{asset: &image.Asset{Data: []byte{1}}, delay: 5 * time.Millisecond}
		admission := NewAdmission(limit)
		client := NewClient(gen, ClientOptions{Admission: admission})

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := client.GenerateItem(context.Background(), domain.ItemTags, testConfig())
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		require.LessOrEqual(t, int(atomic.LoadInt32(&gen.peak)), admission.Limit(), "limit %d", limit)
		require.Len(t, gen.requests, 6)
	}
	require.Equal(t, 1, NewAdmission(-3).Limit())
}

func TestServiceRunsKitToCompletion(t *testing.T) {
	store := repo.NewKitRepository(0)
	svc := NewService(store, NewOrchestrator(&stubItems{}, OrchestratorOptions{}), nil)

	kit, err := svc.Create(context.Background(), testConfig())
	require.NoError(t, err)
	require.Equal(t, domain.KitStateRunning, kit.State)
	svc.Wait()

	got, err := svc.Get(context.Background(), kit.ID)
	require.NoError(t, err)
	require.Equal(t, domain.KitStateCompleted, got.State)
	require.Len(t, got.Results, domain.KitSize)
	require.Equal(t, 100, got.Progress.Percent)

	_, err = svc.Create(context.Background(), domain.GenerationConfig{})
	require.ErrorIs(t, err, domain.ErrMissingPhoto)
}

func TestServiceRejectsConcurrentStart(t *testing.T) {
	gate := make(chan struct{})
	stub := &stubItems{before: func(domain.ItemType) { <-gate }}
	svc := NewService(repo.NewKitRepository(0), NewOrchestrator(stub, OrchestratorOptions{}), nil)

	kit, err := svc.Create(context.Background(), testConfig())
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), kit.ID)
	require.ErrorIs(t, err, domain.ErrRunInProgress)

	close(gate)
	svc.Wait()

	again, err := svc.Start(context.Background(), kit.ID)
	require.NoError(t, err)
	require.Empty(t, again.Results)
	svc.Wait()

	_, err = svc.Start(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestServiceShutdownStopsRuns(t *testing.T) {
	gen := &captureGenerator{asset: &image.Asset{Data: []byte{1}}, delay: time.Minute}
	orch := NewOrchestrator(NewClient(gen, ClientOptions{}), OrchestratorOptions{})
	svc := NewService(repo.NewKitRepository(0), orch, nil)

	kit, err := svc.Create(context.Background(), testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	got, err := svc.Get(context.Background(), kit.ID)
	require.NoError(t, err)
	require.Equal(t, domain.KitStateCompleted, got.State)
	require.NotEmpty(t, got.Progress.Err)
	require.False(t, got.Progress.IsRunning)
}
