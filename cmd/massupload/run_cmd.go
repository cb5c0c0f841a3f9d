package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"massupload/internal/files"
	"massupload/internal/services"
	"massupload/internal/store"
	"massupload/internal/upload"
)

type runOptions struct {
	Type     string
	User     string
	Parallel int
	Quiet    bool
}

type fileResult struct {
	path    string
	outcome *services.Outcome
	err     error
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run --type <type> --user <id> <file.xlsx|dir>...",
		Short: "Upload one or more workbooks, one batch per file",
		Long: `Upload one or more workbooks, one batch per file.

A directory argument uploads every .xlsx file directly inside it, oldest first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(opts.Type) == "" {
				return errors.New("--type is required")
			}
			if strings.TrimSpace(opts.User) == "" {
				return errors.New("--user is required")
			}

			var progress upload.ProgressReporter
			if !opts.Quiet {
				progress = newConsoleProgress(cmd.ErrOrStderr())
			}
			rt, err := openRuntime(cmd.Context(), cmd, progress)
			if err != nil {
				return err
			}
			defer rt.Close()

			targets := expandArgs(args)
			if len(targets) == 0 {
				return errors.New("no workbooks found")
			}
			results, err := runFiles(cmd.Context(), rt.uploads, opts, targets)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVar(&opts.Type, "type", "", "upload type, see the types command")
	cmd.Flags().StringVar(&opts.User, "user", os.Getenv("USER"), "user the uploads are recorded for")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 2, "number of files processed at the same time")
	cmd.Flags().BoolVar(&opts.Quiet, "quiet", false, "do not print progress")
	return cmd
}

// expandArgs resolves each argument on its own so a bad path becomes a
// failed result instead of aborting the whole run.
func expandArgs(args []string) []fileResult {
	var targets []fileResult
	seen := make(map[string]bool)
	for _, arg := range args {
		found, err := files.FindWorkbooks([]string{arg})
		if err != nil {
			targets = append(targets, fileResult{path: arg, err: err})
			continue
		}
		for _, fi := range found {
			if seen[filepath.Clean(fi.Path)] {
				continue
			}
			seen[filepath.Clean(fi.Path)] = true
			targets = append(targets, fileResult{path: fi.Path})
		}
	}
	return targets
}

// runFiles processes every file as its own batch. A file that cannot be
// processed is reported in its result; only a cancelled context stops the
// remaining files.
func runFiles(ctx context.Context, svc *services.UploadService, opts runOptions, targets []fileResult) ([]fileResult, error) {
	results := make([]fileResult, len(targets))
	copy(results, targets)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallel, 1))

	for i := range results {
		if results[i].err != nil {
			continue
		}
		path := results[i].path
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				results[i].err = err
				return nil
			}
			results[i].outcome, results[i].err = svc.Process(gctx, services.Submission{
				Type:     upload.UploadType(opts.Type),
				User:     opts.User,
				Filename: filepath.Base(path),
				Data:     data,
			})
			if gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func report(w io.Writer, results []fileResult) error {
	var failed int
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(w, "%s: failed: %v\n", r.path, r.err)
			continue
		}
		s := r.outcome.Summary
		fmt.Fprintf(w, "%s: %s (upload %s) inserted=%d updated=%d deleted=%d ignored=%d duplicates=%d errors=%d warnings=%d\n",
			r.path, r.outcome.Status, r.outcome.UploadID,
			s.Insert, s.Update, s.Delete, s.Ignore, s.Duplicate, s.Error, s.Warning)
		for _, d := range s.Errors {
			if d.Row > 0 {
				fmt.Fprintf(w, "  row %d: %s\n", d.Row, d.Message)
			} else {
				fmt.Fprintf(w, "  %s\n", d.Message)
			}
		}
		if r.outcome.Status != store.UploadStatusCompleted {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d uploads did not complete", failed, len(results))
	}
	return nil
}

// consoleProgress prints a line whenever an upload enters a new phase.
type consoleProgress struct {
	mu    sync.Mutex
	w     io.Writer
	phase map[string]upload.Phase
}

func newConsoleProgress(w io.Writer) *consoleProgress {
	return &consoleProgress{w: w, phase: make(map[string]upload.Phase)}
}

func (p *consoleProgress) Report(_ context.Context, ev upload.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.phase[ev.UploadID] == ev.Phase {
		return
	}
	p.phase[ev.UploadID] = ev.Phase
	fmt.Fprintf(p.w, "%s: %s %.0f%%\n", ev.UploadID, ev.Phase, ev.Percent)
}
