package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abdulachik/inkbloom/internal/app"
	"github.com/abdulachik/inkbloom/internal/assembler"
	"github.com/abdulachik/inkbloom/internal/remote"
)

var illustrateCmd = &cobra.Command{
	Use:   "illustrate <book.epub> <style>",
	Short: "Write an illustrated copy of a book",
	Long: `Generate one illustration per substantive chapter in the given style and
write <book>_illustrated.epub next to the input.

With --reuse, prompts are still synthesized but the images saved by an earlier
run in the output directory are used instead of calling the image service.`,
	Args: cobra.ExactArgs(2),
	RunE: runIllustrate,
}

var (
	illustrateReuse     bool
	illustrateOnFailure string
	illustrateOutputDir string
	illustratePrompts   string
)

func init() {
	illustrateCmd.Flags().BoolVar(&illustrateReuse, "reuse", false, "Use illustrations from an earlier run instead of generating new ones")
	illustrateCmd.Flags().StringVar(&illustrateOnFailure, "on-failure", "", "What a chapter failure does: abort or skip (default from ON_FAILURE)")
	illustrateCmd.Flags().StringVar(&illustrateOutputDir, "output-dir", "", "Directory for generated images (default from OUTPUT_DIR)")
	illustrateCmd.Flags().StringVar(&illustratePrompts, "prompts", "", "YAML file overriding the prompt texts")
	rootCmd.AddCommand(illustrateCmd)
}

func runIllustrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bookPath, style := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.ValidateForIllustration(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	policyName := cfg.FailurePolicy
	if cmd.Flags().Changed("on-failure") {
		policyName = illustrateOnFailure
	}
	policy, err := assembler.ParseFailurePolicy(policyName)
	if err != nil {
		return err
	}

	prompts := cfg.PromptsPath
	if illustratePrompts != "" {
		prompts = illustratePrompts
	}

	if _, err := os.Stat(bookPath); err != nil {
		return fmt.Errorf("open book: %w", err)
	}

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Close()

	res, err := application.Illustrate(ctx, app.IllustrateOptions{
		BookPath:      bookPath,
		Style:         style,
		Reuse:         illustrateReuse,
		FailurePolicy: policy,
		OutputDir:     illustrateOutputDir,
		PromptsPath:   prompts,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("illustration interrupted")
		}
		var re *remote.Error
		if errors.As(err, &re) {
			slog.Error("remote call failed", re.LogAttrs()...)
		}
		return err
	}

	r := res.Report
	fmt.Printf("Run:         %s\n", res.RunID)
	fmt.Printf("Output:      %s\n", res.OutputPath)
	fmt.Printf("Chapters:    %d (%d excluded)\n", r.Chapters, r.Excluded)
	fmt.Printf("Illustrated: %d\n", r.Illustrated)
	if r.Failed > 0 {
		fmt.Printf("Failed:      %d\n", r.Failed)
	}
	for _, href := range r.MissingAnchors {
		fmt.Printf("  warning: no </h2> in %s, image added but not referenced\n", href)
	}
	return nil
}
