package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/abdulachik/inkbloom/internal/assembler"
	"github.com/abdulachik/inkbloom/internal/config"
	"github.com/abdulachik/inkbloom/internal/db"
	"github.com/abdulachik/inkbloom/internal/epub"
	"github.com/abdulachik/inkbloom/internal/illustration"
	"github.com/abdulachik/inkbloom/internal/prompt"
	"github.com/abdulachik/inkbloom/internal/remote"
	"github.com/abdulachik/inkbloom/internal/textgen"
)

// App is the main application container holding all dependencies.
type App struct {
	Config  *config.Config
	Store   *db.Store
	Limiter *rate.Limiter

	// Overridable in tests.
	TextGenerator prompt.Generator
	Illustrator   assembler.Illustrator
	Now           func() time.Time
}

// New creates a new application instance with all dependencies wired up.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := db.NewStore(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	if _, err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	return &App{
		Config:  cfg,
		Store:   store,
		Limiter: remote.NewLimiter(cfg.RequestsPerMinute),
		Now:     time.Now,
	}, nil
}

// textGenerator returns the client for the configured provider.
func (a *App) textGenerator() prompt.Generator {
	if a.TextGenerator != nil {
		return a.TextGenerator
	}
	cfg := a.Config
	if cfg.TextProvider == config.ProviderOpenAI {
		return textgen.NewOpenAIClient(textgen.OpenAIConfig{
			APIKey:    cfg.TextAPIKey,
			Model:     cfg.TextModel,
			BaseURL:   cfg.TextBaseURL,
			MaxTokens: cfg.MaxTokens,
			Limiter:   a.Limiter,
		})
	}
	return textgen.NewClaudeClient(textgen.ClaudeConfig{
		APIKey:    cfg.TextAPIKey,
		Model:     cfg.TextModel,
		BaseURL:   cfg.TextBaseURL,
		MaxTokens: cfg.MaxTokens,
		Limiter:   a.Limiter,
	})
}

func (a *App) illustrator(outputDir string) assembler.Illustrator {
	if a.Illustrator != nil {
		return a.Illustrator
	}
	return illustration.NewGenerator(illustration.Config{
		APIKey:    a.Config.ImageAPIKey,
		BaseURL:   a.Config.ImageBaseURL,
		Model:     a.Config.ImageModel,
		OutputDir: outputDir,
		Limiter:   a.Limiter,
	})
}

// IllustrateOptions selects the book and the per-run settings.
type IllustrateOptions struct {
	BookPath      string
	Style         string
	Reuse         bool
	FailurePolicy assembler.FailurePolicy
	OutputDir     string
	PromptsPath   string
}

// IllustrateResult describes a finished run.
type IllustrateResult struct {
	RunID      string
	OutputPath string
	Report     *assembler.Report
}

// Illustrate runs the pipeline over one book, writes the illustrated copy
// and records the run in the ledger.
func (a *App) Illustrate(ctx context.Context, opts IllustrateOptions) (*IllustrateResult, error) {
	templates, err := prompt.LoadTemplates(opts.PromptsPath)
	if err != nil {
		return nil, err
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = a.Config.OutputDir
	}
	policy := opts.FailurePolicy
	if policy == "" {
		policy = assembler.FailureAbort
	}

	src, err := epub.Open(opts.BookPath)
	if err != nil {
		return nil, fmt.Errorf("open book: %w", err)
	}
	outputPath := assembler.OutputPath(opts.BookPath)

	run, err := a.Store.CreateRun(ctx, db.CreateRunParams{
		ID:            uuid.NewString(),
		SourcePath:    opts.BookPath,
		OutputPath:    outputPath,
		Style:         opts.Style,
		Reuse:         opts.Reuse,
		FailurePolicy: string(policy),
		StartedAt:     a.Now(),
	})
	if err != nil {
		return nil, err
	}

	log := slog.With("run", run.ID)
	log.Info("illustrating book", "book", opts.BookPath, "title", src.Metadata.Title(), "items", len(src.Items), "style", opts.Style, "reuse", opts.Reuse)

	asm := assembler.New(assembler.Config{
		Synthesizer:   prompt.NewSynthesizer(a.textGenerator(), templates),
		Illustrator:   a.illustrator(outputDir),
		Recorder:      NewLedger(a.Store, run.ID, a.Now),
		Style:         opts.Style,
		Reuse:         opts.Reuse,
		FailurePolicy: policy,
	})

	out, report, err := asm.Assemble(ctx, src)
	if err == nil {
		err = epub.Write(outputPath, out)
	}

	// The run row is finished even when ctx was canceled.
	finishCtx := context.WithoutCancel(ctx)
	if ferr := a.finishRun(finishCtx, run.ID, report, err); ferr != nil {
		log.Warn("failed to finish run", "error", ferr)
	}
	if err != nil {
		return nil, fmt.Errorf("illustrate %s: %w", opts.BookPath, err)
	}

	log.Info("illustrated book written", "output", outputPath, "illustrated", report.Illustrated, "failed", report.Failed)
	return &IllustrateResult{RunID: run.ID, OutputPath: outputPath, Report: report}, nil
}

func (a *App) finishRun(ctx context.Context, id string, report *assembler.Report, runErr error) error {
	params := db.FinishRunParams{
		ID:         id,
		Status:     db.RunCompleted,
		FinishedAt: a.Now(),
	}
	if report != nil {
		params.Chapters = int64(report.Chapters)
		params.Illustrated = int64(report.Illustrated)
		params.Failed = int64(report.Failed)
	}
	if runErr != nil {
		params.Status = db.RunFailed
		params.Error = runErr.Error()
	}
	return a.Store.FinishRun(ctx, params)
}

// Close closes all resources.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
