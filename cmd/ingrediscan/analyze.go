package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/anime-shed/ingrediscan-go/internal/container"
	apperrors "github.com/anime-shed/ingrediscan-go/internal/errors"
	"github.com/anime-shed/ingrediscan-go/internal/report"
	"github.com/anime-shed/ingrediscan-go/internal/service"
	"github.com/anime-shed/ingrediscan-go/pkg/models"
)

// errAnalysisFailed makes the process exit non-zero when any image failed
var errAnalysisFailed = errors.New("one or more images could not be analyzed")

// DefaultConcurrency is the number of images analyzed at once
const DefaultConcurrency = 2

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze FILE [FILE...]",
		Short: "Analyze label photos from local files",
		Long: `Analyze runs the full pipeline on each file and prints the results.

Examples:
  # Analyze one photo
  ingrediscan analyze label.jpg

  # Analyze several photos, three at a time, as Markdown
  ingrediscan analyze -j 3 -o markdown *.jpg > report.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAnalyzeCmd,
	}

	cmd.Flags().StringP("output", "o", report.FormatHuman, "Output format: human, json, yaml or markdown")
	cmd.Flags().IntP("concurrency", "j", DefaultConcurrency, "Number of images analyzed concurrently")
	cmd.Flags().StringP("lang", "l", "zh", "Language of failure messages (zh or en)")
	cmd.Flags().BoolP("quiet", "q", false, "Do not show progress")

	return cmd
}

func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("output")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	lang, _ := cmd.Flags().GetString("lang")
	quiet, _ := cmd.Flags().GetBool("quiet")

	writer, err := report.New(format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	c, err := container.NewContainer(cfg, container.WithSyncEvents())
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress func(done, total int)
	if !quiet {
		s := spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Analyzing %d image(s) with %s...", len(args), c.ModelName())
		s.Start()
		defer s.Stop()
		progress = func(done, total int) {
			s.Lock()
			s.Suffix = fmt.Sprintf(" Analyzed %d/%d image(s)...", done, total)
			s.Unlock()
		}
	}

	entries, err := analyzeFiles(ctx, c.Service(), args, concurrency, apperrors.MatchLanguage(lang), progress)
	if err != nil {
		return err
	}

	if err := writer.Write(entries); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if report.Failures(entries) > 0 {
		return errAnalysisFailed
	}
	return nil
}

// analyzeFiles runs the pipeline on each file with at most concurrency in
// flight. Entries keep the order of files; unreadable files become
// invalid_image entries.
func analyzeFiles(
	ctx context.Context,
	svc service.LabelAnalysisService,
	files []string,
	concurrency int,
	lang language.Tag,
	progress func(done, total int),
) ([]report.Entry, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	entries := make([]report.Entry, len(files))
	var done atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, file := range files {
		g.Go(func() error {
			// Check for cancellation before starting
			if err := ctx.Err(); err != nil {
				return err
			}

			start := time.Now()
			result := analyzeFile(ctx, svc, file, lang)
			entries[i] = report.Entry{Source: file, Result: result, Duration: time.Since(start)}

			if progress != nil {
				progress(int(done.Add(1)), len(files))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func analyzeFile(ctx context.Context, svc service.LabelAnalysisService, file string, lang language.Tag) *models.CanonicalResult {
	raw, err := os.ReadFile(file)
	if err != nil {
		return models.Failed(
			apperrors.UserMessage(apperrors.ErrorTypeInvalidImage, lang, err.Error()),
			string(apperrors.ErrorTypeInvalidImage),
		)
	}

	req := models.AnalysisRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(raw),
		ImageType:   mime.TypeByExtension(filepath.Ext(file)),
	}
	return svc.Analyze(ctx, req, lang)
}
