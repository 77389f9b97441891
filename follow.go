package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mickamy/planlens/internal/analyzer"
	"github.com/mickamy/planlens/internal/config"
	"github.com/mickamy/planlens/internal/session"
	"github.com/mickamy/planlens/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-render a query whenever its documents change on disk",
	Long: `Watch the plan, explanation, prediction and evaluation files of one query.
Explanations that arrive later fill their pending bars; a new plan starts a
new query and drops colours, selection and every older document.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		src := sourceFromFlags()
		if src.Plan == "" {
			return errors.New("--plan is required")
		}
		format := viper.GetString("format")
		out := viper.GetString("out")
		if format == "html" && out == "" {
			return errors.New("--out is required for html output")
		}

		sess, err := newSession(config.Active(), viewFromFlags(), logger)
		if err != nil {
			return err
		}
		f := &follower{
			sess:   sess,
			src:    src,
			logger: logger,
			render: func(a *analyzer.Analysis) error {
				if out == "" {
					return writeReport(os.Stdout, format, a, reportOptions{Color: colorEnabled(cmd, os.Stdout)})
				}
				return writeFile(out, func(w io.Writer) error {
					return writeReport(w, format, a, reportOptions{Title: viper.GetString("title")})
				})
			},
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return f.run(ctx, viper.GetDuration("debounce"), viper.GetInt("select"))
	},
}

func init() {
	addFileFlags(watchCmd)
	addViewFlags(watchCmd)
	watchCmd.Flags().StringP("format", "f", "tui", "output format: tui, html or svg")
	watchCmd.Flags().StringP("out", "o", "", "file rewritten on every change (stdout if omitted)")
	watchCmd.Flags().String("title", "", "report title (HTML, SVG)")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounceDuration, "quiet period before a changed file is read")
}

// follower keeps a session in step with the documents of one query on disk.
type follower struct {
	sess   *session.Session
	src    source
	logger zerolog.Logger
	render func(*analyzer.Analysis) error

	mu  sync.Mutex
	key session.Key
}

func (f *follower) run(ctx context.Context, debounce time.Duration, selected int) error {
	f.sess.OnChange(func(a *analyzer.Analysis) {
		if err := f.render(a); err != nil {
			f.logger.Error().Err(err).Msg("render")
		}
	})
	if err := f.reload(); err != nil {
		return err
	}
	if selected >= 0 {
		f.sess.Select(selected)
	}

	w, err := watch.New(f.src.files(), f.changed,
		watch.WithDebounceDuration(debounce),
		watch.WithLogger(f.logger),
		watch.WithOnError(func(err error) {
			f.logger.Warn().Err(err).Msg("watch")
		}),
	)
	if err != nil {
		return err
	}
	f.logger.Info().Strs("files", w.Paths()).Msg("watching")
	return w.Run(ctx)
}

// reload reads every document and starts a new query.
func (f *follower) reload() error {
	bundle, err := readFiles(f.src)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key, err := applyBundle(f.sess, bundle)
	f.key = key
	return err
}

func (f *follower) changed(path string) {
	var err error
	switch {
	case samePath(path, f.src.Plan):
		err = f.reload()
	case samePath(path, f.src.Prediction):
		err = f.applyPrediction()
	case samePath(path, f.src.Evaluations):
		err = f.applyEvaluations()
	default:
		for _, candidate := range f.src.Explanations {
			if samePath(path, candidate) {
				err = f.applyExplanation(candidate)
				break
			}
		}
	}
	if err != nil {
		f.logger.Warn().Err(err).Str("file", path).Msg("reload")
	}
}

func (f *follower) applyExplanation(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	explanation, err := readExplanation(path, f.key.QueryID)
	if err != nil {
		return err
	}
	if explanation.QueryID != f.key.QueryID {
		return fmt.Errorf("%s: explanation is for query %d, watching %d", path, explanation.QueryID, f.key.QueryID)
	}
	return f.sess.ApplyExplanation(f.key, *explanation)
}

func (f *follower) applyPrediction() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prediction, err := readPrediction(f.src.Prediction)
	if err != nil {
		return err
	}
	return f.sess.ApplyPrediction(f.key, *prediction)
}

func (f *follower) applyEvaluations() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	results, err := readEvaluations(f.src.Evaluations, f.key.QueryID)
	if err != nil {
		return err
	}
	return f.sess.ApplyEvaluations(f.key, results)
}

func samePath(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return false
	}
	return filepath.Clean(absA) == filepath.Clean(absB)
}

func writeFile(path string, fn func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := fn(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
