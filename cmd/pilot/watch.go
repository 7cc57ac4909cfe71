package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"testpilot/internal/logging"
	"testpilot/internal/runner"
	"testpilot/internal/suite"

	"github.com/spf13/cobra"
)

var (
	watchOpts     runFlags
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch <suite>",
	Short: "Run a suite, then run it again every time the file changes",
	Args:  cobra.ExactArgs(1),
	RunE:  watchSuite,
}

func init() {
	addRunFlags(watchCmd, &watchOpts)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Quiet period before a rerun")
}

func watchSuite(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := newDeps(ctx, runner.WithObserver(newProgress(os.Stderr)))
	if err != nil {
		return err
	}
	defer d.Close()

	w, err := suite.NewWatcher(args[0], watchDebounce)
	if err != nil {
		return err
	}

	run := func(ctx context.Context, s *suite.Suite) {
		summary, err := d.runner.Run(ctx, requestFor(s, watchOpts))
		if err != nil {
			fmt.Fprintln(os.Stderr, failStyle.Render("run failed: ")+err.Error())
			return
		}
		fmt.Println(renderSummary(s.Name, summary))
	}

	s, err := suite.Load(args[0])
	if err != nil {
		logging.WatchWarn("initial load: %v", err)
		fmt.Fprintln(os.Stderr, err)
	} else {
		run(ctx, s)
	}

	fmt.Fprintln(os.Stderr, dimStyle.Render("watching "+args[0]+" (ctrl-c to stop)"))
	return w.Run(ctx, func(ctx context.Context, s *suite.Suite, err error) {
		if err != nil {
			fmt.Fprintln(os.Stderr, failStyle.Render("suite invalid: ")+err.Error())
			return
		}
		run(ctx, s)
	})
}
