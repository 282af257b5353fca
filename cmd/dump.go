package cmd

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/typster/internal/config"
	"github.com/conneroisu/typster/internal/errors"
	"github.com/conneroisu/typster/internal/fetch"
	"github.com/conneroisu/typster/internal/logging"
	"github.com/conneroisu/typster/internal/stream"
)

var dumpCmd = &cobra.Command{
	Use:     "dump",
	Aliases: []string{"d"},
	Short:   "Print streamed lines",
	Long: `Crawl the registry and print qualifying source lines as they arrive.

Each line is printed as "text ::: origin" in text mode, or as one object per
line in json and yaml modes.

Examples:
  typster dump                 # Print 100 lines
  typster dump -n 0            # Print until the registry is exhausted
  typster dump -n 50 -o json   # Print 50 lines as JSON`,
	RunE: runDump,
}

var (
	dumpCount  int
	dumpOutput *OutputFlags
)

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().IntVarP(&dumpCount, "count", "n", 100, "Number of lines to print (0 prints until the stream ends)")
	AddFlagValidation(dumpCmd.Flags(), "count", ValidateCount)
	dumpOutput = AddOutputFlags(dumpCmd, FormatText, FormatJSON, FormatYAML)
}

func runDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return dump(ctx, cfg, logger, cmd.OutOrStdout(), dumpCount, dumpOutput.Format)
}

// dump prints up to n lines (all lines when n is 0) in format.
func dump(ctx context.Context, cfg *config.Config, logger logging.Logger, out io.Writer, n int, format string) (err error) {
	writer, err := newLineWriter(out, format)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := writer.Close(); err == nil {
			err = closeErr
		}
	}()

	fetcher, closeFetcher, err := fetch.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeFetcher() }()

	queue, err := stream.NewFromConfig(cfg, fetcher, logger)
	if err != nil {
		return err
	}
	defer func() { _ = queue.Close() }()
	queue.Start(ctx)

	printed := 0
	for n == 0 || printed < n {
		line, err := queue.Next(ctx)
		if stderrors.Is(err, stream.ErrEnded) {
			return streamEnded(ctx, logger, queue.Err(), printed)
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Interrupted", "lines", printed)
				return nil
			}
			return err
		}

		if err := writer.Write(line); err != nil {
			return err
		}
		printed++
	}

	logger.Debug(ctx, "Dump complete", "lines", printed, "stats", queue.Stats())
	return nil
}

// streamEnded decides whether the end of the stream is a failure. Running
// out of registry pages after printing something is the normal end.
func streamEnded(ctx context.Context, logger logging.Logger, cause error, printed int) error {
	if cause == nil || (errors.IsExhausted(cause) && printed > 0) {
		logger.Info(ctx, "Stream ended", "lines", printed)
		return nil
	}

	title := "Stream stopped"
	if printed == 0 {
		title = "No lines found"
	}
	return errors.NewEnhancedError(title, cause, errors.CrawlSuggestions(cause))
}
