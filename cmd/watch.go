package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/config"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/errors"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/logging"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/report"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/split"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/types"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/verify"
	"github.com/robertyawmegbenu/just-eat-data-platform-infra-exercise/internal/watcher"
)

const watchQueueSize = 64

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch an inbox directory and split files as they arrive",
	Long: `Watch an inbox directory and split every matching file once it has
settled. Parts of <inbox>/data.csv are written to <output-dir>/data/, replacing
parts left by an earlier drop of the same file. Files already in the inbox
are split at startup.

Stop with Ctrl+C; the file being split is abandoned without leaving a
half-written part behind.

Examples:
  filesplit watch --inbox incoming --output-dir out --max-bytes 1048576 --max-lines 10000
  filesplit watch --inbox incoming --output-dir out --max-bytes 1048576 --max-lines 10000 --pattern "*.tsv" --verify`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	flags := watchCmd.Flags()
	flags.String("inbox", "", "directory to watch")
	flags.StringP("output-dir", "o", "", "directory receiving one sub-directory of parts per file")
	addPolicyFlags(flags)
	addEncodingFlags(flags)
	flags.String("pattern", "", `glob selecting inbox files (default "*.csv")`)
	flags.Bool("verify", false, "verify every split; reports go to <report-dir>/<stem>")
	flags.Duration("debounce", 0, "quiet period before a changed file is split (default 500ms)")

	bindKey(flags, "inbox", "watch.inbox")
	bindKey(flags, "output-dir", "split.output_dir")
	bindKey(flags, "pattern", "watch.pattern")
	bindKey(flags, "verify", "split.verify")
	bindKey(flags, "debounce", "watch.debounce")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	if cfg.Watch.Inbox == "" {
		return errors.NewValidationError(errors.ErrCodeConfigInvalid, "--inbox is required")
	}
	if cfg.Split.OutputDir == "" {
		return errors.NewValidationError(errors.ErrCodeConfigInvalid, "--output-dir is required")
	}

	splitter, err := split.New(cfg.Policy(), split.Options{
		NoHeader: cfg.Split.NoHeader,
		Encoding: cfg.Split.Encoding,
		Clean:    true,
	}, appLogger)
	if err != nil {
		return err
	}

	fileWatcher, err := watcher.NewFileWatcher(cfg.Watch.Debounce, appLogger)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "failed to create file watcher", err)
	}
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.PatternFilter(cfg.Watch.Pattern))
	if err := fileWatcher.AddPath(cfg.Watch.Inbox); err != nil {
		fileWatcher.Stop()
		return errors.ErrSourceUnreadable(cfg.Watch.Inbox, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inbox := &inboxProcessor{
		cmd:      cmd,
		cfg:      cfg,
		splitter: splitter,
		queue:    make(chan string, watchQueueSize),
		failures: errors.NewErrorCollector(),
	}
	return inbox.run(ctx, fileWatcher)
}

// inboxProcessor splits inbox files one at a time as the watcher reports
// them.
type inboxProcessor struct {
	cmd      *cobra.Command
	cfg      *config.Config
	splitter *split.Splitter
	queue    chan string
	failures *errors.ErrorCollector
}

func (p *inboxProcessor) run(ctx context.Context, fileWatcher *watcher.FileWatcher) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The processor stops with the watcher.
		defer cancel()
		return fileWatcher.Run(gctx, p.enqueue)
	})

	g.Go(func() error {
		existing, err := filepath.Glob(filepath.Join(p.cfg.Watch.Inbox, p.cfg.Watch.Pattern))
		if err != nil {
			return err
		}
		for _, path := range existing {
			if watcher.NoHiddenFilter(path) {
				p.process(gctx, path)
			}
		}

		for {
			select {
			case <-gctx.Done():
				return nil
			case path := <-p.queue:
				p.process(gctx, path)
			}
		}
	})

	appLogger.Info(ctx, "Watching inbox",
		"inbox", p.cfg.Watch.Inbox,
		"pattern", p.cfg.Watch.Pattern,
		"output_dir", p.cfg.Split.OutputDir,
		"debounce", p.cfg.Watch.Debounce,
	)

	if err := g.Wait(); err != nil {
		return err
	}
	if p.failures.HasErrors() {
		appLogger.Warn(ctx, nil, "Some inbox files failed", "count", len(p.failures.Errors()))
		return p.failures.Err()
	}
	return nil
}

func (p *inboxProcessor) enqueue(ctx context.Context, events []watcher.ChangeEvent) error {
	for _, event := range events {
		if !event.Present() {
			continue
		}
		select {
		case p.queue <- event.Path:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// process splits one inbox file into its own directory under the output
// directory, and verifies it when asked. Failures are logged and collected;
// the watch goes on.
func (p *inboxProcessor) process(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	stem, _ := types.StemAndExt(path)
	outDir := filepath.Join(p.cfg.Split.OutputDir, stem)
	log := appLogger.With("file", path, "output_dir", outDir)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		p.fail(ctx, log, errors.ErrDestUnwritable(outDir, err))
		return
	}

	result, err := p.splitter.Split(ctx, path, outDir)
	if err != nil {
		if errors.CodeOf(err) != errors.ErrCodeCanceled {
			p.fail(ctx, log, err)
		}
		return
	}
	if err := report.RenderSplit(p.cmd.OutOrStdout(), result, report.FormatText); err != nil {
		p.fail(ctx, log, err)
		return
	}

	if !p.cfg.Split.Verify {
		return
	}
	verifier, err := verify.New(p.cfg.Policy(), verify.Options{
		PartsDir:     outDir,
		CheckHeaders: true,
		Recombine:    true,
		NoHeader:     p.cfg.Split.NoHeader,
		Encoding:     p.cfg.Split.Encoding,
	}, appLogger)
	if err != nil {
		p.fail(ctx, log, err)
		return
	}
	sanity, err := verifier.Verify(ctx, path)
	if err != nil {
		p.fail(ctx, log, err)
		return
	}
	if p.cfg.Verify.ReportDir != "" {
		if _, err := report.Write(filepath.Join(p.cfg.Verify.ReportDir, stem), sanity); err != nil {
			p.fail(ctx, log, err)
			return
		}
	}
	if !sanity.Passed {
		p.fail(ctx, log, errors.ErrVerificationFailed.WithPath(path).WithContext("run_id", sanity.RunID))
		return
	}
	log.Info(ctx, verdictLine(sanity))
}

func (p *inboxProcessor) fail(ctx context.Context, log logging.Logger, err error) {
	log.Error(ctx, err, "Inbox file failed")
	p.failures.Add(err)
}
