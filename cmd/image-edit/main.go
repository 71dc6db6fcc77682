package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fpang/ai-image-editor/internal/chat"
	"github.com/fpang/ai-image-editor/internal/cli"
	"github.com/fpang/ai-image-editor/internal/config"
	"github.com/fpang/ai-image-editor/internal/export"
	"github.com/fpang/ai-image-editor/internal/filehandler"
	"github.com/fpang/ai-image-editor/internal/logging"
	"github.com/fpang/ai-image-editor/internal/session"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// CLI flags
var (
	inputFlag       string
	outputFlag      string
	formatFlag      string
	qualityFlag     int
	intensityFlag   int
	modelFlag       string
	providerFlag    string
	interactiveFlag bool
	bundleFlag      bool
)

var rootCmd = &cobra.Command{
	Use:   "image-edit [operation[=value] ...]",
	Short: "Apply AI image edits from the command line",
	Long: `Image Edit uploads an image, applies AI edit operations in order and
exports the result. Operations take an optional value: the style for
style-transfer and artistic-filter, the prompt for enhance and object-removal.

When --input or --output is omitted a native file dialog is shown.

Examples:
  image-edit -i photo.jpg background-removal
  image-edit -i photo.jpg style-transfer=watercolor enhance -o out.webp --format webp
  image-edit -i photo.jpg --interactive`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "Image to edit")
	rootCmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Where to write the result")
	rootCmd.Flags().StringVar(&formatFlag, "format", "", "Export format: png, jpg or webp (default from output extension)")
	rootCmd.Flags().IntVarP(&qualityFlag, "quality", "q", export.DefaultQuality, "Quality for jpg and webp (10-100)")
	rootCmd.Flags().IntVar(&intensityFlag, "intensity", 0, "Intensity for enhance and artistic-filter (0-100, 0 = default)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model to use (default depends on provider)")
	rootCmd.Flags().StringVar(&providerFlag, "provider", "", "Remote provider: openai or gemini")
	rootCmd.Flags().BoolVar(&interactiveFlag, "interactive", false, "Edit interactively with undo, redo and history")
	rootCmd.Flags().BoolVar(&bundleFlag, "bundle", false, "Export every history state as a zip instead of the current image")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	steps, err := parseSteps(args, intensityFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid operation")
	}
	if len(steps) == 0 && !interactiveFlag {
		log.Fatal().Msg("No operations given; pass operations or --interactive")
	}

	if providerFlag != "" {
		os.Setenv("IMAGE_EDIT_PROVIDER", providerFlag)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}

	ctx := context.Background()
	editor, _ := cli.InitEditor(ctx, cfg, false)

	inputPath := inputFlag
	if inputPath == "" {
		inputPath, err = pickInput()
		if err != nil {
			log.Fatal().Err(err).Msg("No input selected")
		}
	}

	inputPath = cli.ValidateAndResolveFile(inputPath)
	upload, err := filehandler.LoadFile(inputPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", inputPath).Msg("Failed to load image")
	}

	ctrl := session.NewController(editor, session.Options{
		HistoryLimit:   cfg.HistoryLimit,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Fetcher:        chat.NewHTTPFetcher(nil, chat.DefaultMaxFetchBytes),
	})
	if err := ctrl.Upload(upload); err != nil {
		log.Fatal().Err(err).Str("path", inputPath).Msg("Image rejected")
	}
	fmt.Printf("Loaded %s\n", filepath.Base(inputPath))

	for _, step := range steps {
		if !apply(ctx, ctrl, step) {
			os.Exit(1)
		}
	}

	if interactiveFlag {
		if quit := repl(ctx, ctrl, os.Stdin, os.Stdout); quit {
			return
		}
	}

	if err := save(ctrl, outputFlag); err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			fmt.Println("Export canceled")
			return
		}
		log.Fatal().Err(err).Msg("Export failed")
	}
}

// apply runs one step and prints its outcome.
func apply(ctx context.Context, ctrl *session.Controller, s step) bool {
	fmt.Printf("Applying %s...\n", s.op.Name())
	out := ctrl.ApplyOperation(ctx, s.op)
	if !out.Success {
		fmt.Printf("Error: %s\n", out.Error)
		return false
	}
	fmt.Printf("%s applied successfully (%s)\n", out.Operation, cli.FormatElapsed(out.Elapsed))
	return true
}

// pickInput shows a file dialog, falling back to a terminal prompt when no
// dialog is available.
func pickInput() (string, error) {
	path, err := zenity.SelectFile(
		zenity.Title("Select an image to edit"),
		zenity.FileFilters{
			{
				Name:     "Images",
				Patterns: []string{"*.jpg", "*.jpeg", "*.png", "*.gif", "*.webp"},
			},
		},
	)
	if err == nil || errors.Is(err, zenity.ErrCanceled) {
		return path, err
	}
	log.Debug().Err(err).Msg("File dialog unavailable, prompting instead")
	if path = cli.PromptForPath(os.Stdin, os.Stdout, "Image to edit", ""); path == "" {
		return "", errors.New("no input given")
	}
	return path, nil
}

// save exports the current image (or the history bundle) to path, asking
// with a save dialog when path is empty.
func save(ctrl *session.Controller, path string) error {
	format, err := export.ParseFormat(formatFlag)
	if err != nil {
		return err
	}
	if formatFlag == "" && path != "" {
		if f, err := export.ParseFormat(strings.TrimPrefix(filepath.Ext(path), ".")); err == nil {
			format = f
		}
	}

	opts := export.Options{
		Format:       format,
		Quality:      qualityFlag,
		OriginalName: ctrl.FileName(),
		Now:          time.Now(),
	}

	var blob export.Blob
	if bundleFlag {
		original, _ := ctrl.Original()
		blob, err = export.Bundle(original, ctrl.Entries(), opts)
	} else {
		current, _ := ctrl.Current()
		blob, err = export.Encode(current, opts)
	}
	if err != nil {
		return err
	}

	if path == "" {
		path, err = zenity.SelectFileSave(
			zenity.Title("Save edited image"),
			zenity.Filename(blob.FileName),
			zenity.ConfirmOverwrite(),
		)
		if errors.Is(err, zenity.ErrCanceled) {
			return err
		}
		if err != nil {
			log.Debug().Err(err).Msg("Save dialog unavailable, prompting instead")
			path = cli.PromptForPath(os.Stdin, os.Stdout, "Save as", blob.FileName)
		}
	}

	if err := os.WriteFile(path, blob.Data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Printf("Saved %s (%s)\n", path, cli.FormatBytes(int64(len(blob.Data))))
	return nil
}
