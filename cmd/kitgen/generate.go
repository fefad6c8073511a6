package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"partykit/internal/domain"
	"partykit/internal/domain/catalog"
	"partykit/internal/infra"
	"partykit/internal/kit"
	"partykit/internal/providers/image"
	"partykit/internal/storage"
	"partykit/pkg/zip"
)

type generateOptions struct {
	Photo       string
	ThemePhoto  string
	Theme       string
	ThemePrompt string
	Age         string
	Features    string
	Style       string
	Tone        string
	Locale      string
	Provider    string
	OutDir      string
	Singles     bool
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate all eight kit items and write them as a zip archive",
		Example: `  kitgen generate --photo kid.jpg --age 5 --theme "Dino Baby"
  kitgen generate --photo kid.png --theme-photo cake.png --style pixar --singles`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			if opts.OutDir == "" {
				opts.OutDir = cfg.OutputDir
			}
			provider := cfg.ImageProvider
			if opts.Provider != "" {
				provider = opts.Provider
			}
			logger := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
				Level(zerolog.WarnLevel).With().Timestamp().Logger()

			gen, name, err := image.NewGenerator(cmd.Context(), image.GeneratorOptions{
				Provider:   provider,
				APIKey:     cfg.GeminiAPIKey,
				Model:      cfg.GeminiModel,
				BaseURL:    cfg.GeminiBaseURL,
				HTTPClient: &http.Client{Timeout: cfg.HTTPClientTimeout},
				Logger:     &logger,
			})
			if err != nil {
				return err
			}
			if name == image.ProviderSynthetic {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: no API key or synthetic provider; images are placeholders")
			}
			cat, err := catalog.Default().WithDefaultLocale(cfg.DefaultLocale)
			if err != nil {
				return err
			}
			return runGenerate(cmd.Context(), cmd.OutOrStdout(), opts, gen, cat, &logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Photo, "photo", "", "child photo (jpeg, png or webp)")
	f.StringVar(&opts.ThemePhoto, "theme-photo", "", "optional theme reference image")
	f.StringVar(&opts.Theme, "theme", "", "preset theme name (see kitgen themes)")
	f.StringVar(&opts.ThemePrompt, "theme-prompt", "", "free-text theme description")
	f.StringVar(&opts.Age, "age", "", "age to celebrate")
	f.StringVar(&opts.Features, "features", "", "physical traits to preserve")
	f.StringVar(&opts.Style, "style", string(domain.StyleCartoon), "art style: cartoon or pixar")
	f.StringVar(&opts.Tone, "tone", string(domain.ToneCute), "tone: cute, adventurous, magical or fun")
	f.StringVar(&opts.Locale, "locale", "", "label language, e.g. pt-BR or en")
	f.StringVar(&opts.Provider, "provider", "", "image provider: gemini, genai-sdk or synthetic")
	f.StringVarP(&opts.OutDir, "out", "o", "", "output directory (default $OUTPUT_DIR)")
	f.BoolVar(&opts.Singles, "singles", false, "also write each image as its own file")
	_ = cmd.MarkFlagRequired("photo")
	return cmd
}

func runGenerate(ctx context.Context, out io.Writer, opts generateOptions, gen image.Generator, cat *catalog.Catalog, logger *infra.Logger) error {
	child, err := readImage(opts.Photo)
	if err != nil {
		return fmt.Errorf("photo: %w", err)
	}
	cfg := domain.GenerationConfig{
		Age:         strings.TrimSpace(opts.Age),
		Features:    strings.TrimSpace(opts.Features),
		Style:       domain.ParseStyle(opts.Style),
		Tone:        domain.ParseTone(opts.Tone),
		SourceImage: *child,
		ThemePrompt: strings.TrimSpace(opts.ThemePrompt),
		Locale:      cat.MatchLocale(opts.Locale),
	}
	if opts.ThemePhoto != "" {
		if cfg.ThemeImage, err = readImage(opts.ThemePhoto); err != nil {
			return fmt.Errorf("theme photo: %w", err)
		}
	}
	if opts.Theme != "" {
		preset, ok := cat.Theme(opts.Theme)
		if !ok {
			return fmt.Errorf("unknown theme %q", opts.Theme)
		}
		cfg.ThemeName = preset.Name
		if cfg.ThemePrompt == "" {
			cfg.ThemePrompt = preset.Prompt
		}
	}

	store, err := storage.NewFileStore(opts.OutDir)
	if err != nil {
		return err
	}

	client := kit.NewClient(gen, kit.ClientOptions{Logger: logger})
	orch := kit.NewOrchestrator(client, kit.OrchestratorOptions{Catalog: cat, Logger: logger})

	lastStep := ""
	snap, report, runErr := orch.Run(ctx, cfg, func(s kit.Snapshot) {
		if s.Progress.Step != lastStep {
			lastStep = s.Progress.Step
			fmt.Fprintf(out, "[%3d%%] %s\n", s.Progress.Percent, s.Progress.Step)
		}
	})
	if runErr != nil {
		fmt.Fprintln(out, snap.Progress.Err)
	}
	for _, t := range report.Skipped {
		fmt.Fprintf(out, "skipped: %s\n", cat.Label(cfg.Locale, t))
	}

	naming := cat.Archive(cfg.Locale)
	archive, err := zip.ExportKit(snap.Results, zip.ExportOptions{
		Folder:    naming.Folder,
		Prefix:    naming.Prefix,
		AgePrefix: naming.AgePrefix,
		Age:       cfg.Age,
		Now:       time.Now(),
	})
	if err != nil {
		fmt.Fprintln(out, cat.Messages(cfg.Locale).ExportFailed)
		return errors.Join(runErr, err)
	}
	if archive == nil {
		return errors.Join(runErr, domain.ErrNoResults)
	}
	// Writes use a fresh context so an interrupted run still saves what it made.
	saveCtx := context.WithoutCancel(ctx)
	key, err := store.WriteArchive(saveCtx, archive)
	if err != nil {
		return errors.Join(runErr, err)
	}
	fmt.Fprintf(out, "archive: %s (%d images)\n", store.Path(key), len(snap.Results))

	if opts.Singles {
		keys, err := store.WriteSingles(saveCtx, naming.Folder, snap.Results)
		if err != nil {
			return errors.Join(runErr, err)
		}
		for _, k := range keys {
			fmt.Fprintf(out, "image: %s\n", store.Path(k))
		}
	}
	return runErr
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

func readImage(path string) (*domain.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mimeType := http.DetectContentType(data)
	if !allowedImageTypes[mimeType] {
		return nil, fmt.Errorf("unsupported content type %s", mimeType)
	}
	return &domain.Image{Data: data, MIMEType: mimeType}, nil
}
