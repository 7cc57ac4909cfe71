package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"testpilot/internal/runner"
	"testpilot/internal/suite"
	"testpilot/internal/tracing"

	"github.com/spf13/cobra"
)

// runFlags override what the suite file says.
type runFlags struct {
	url      string
	baseURL  string
	username string
	password string
	generate bool
	json     bool
	trace    bool
}

var runOpts runFlags

var runCmd = &cobra.Command{
	Use:   "run <suite>",
	Short: "Run a test suite once",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuite,
}

func init() {
	addRunFlags(runCmd, &runOpts)
	runCmd.Flags().BoolVar(&runOpts.json, "json", false, "Print the summary envelope as JSON")
	runCmd.Flags().BoolVar(&runOpts.trace, "trace", false, "Export OpenTelemetry spans to stderr")
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVar(&f.url, "url", "", "Page to open before the steps run")
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Base URL for relative api step URLs")
	cmd.Flags().StringVar(&f.username, "user", "", "Login username")
	cmd.Flags().StringVar(&f.password, "pass", "", "Login password (or PILOT_PASSWORD)")
	cmd.Flags().BoolVar(&f.generate, "generate", false, "Generate presence checks when the suite has no cases")
}

// requestFor builds a run request from a suite with flags taking precedence.
func requestFor(s *suite.Suite, f runFlags) runner.Request {
	req := runner.Request{
		URL:       s.URL,
		BaseURL:   s.BaseURL,
		Username:  s.Username,
		Password:  s.Password,
		Generate:  s.Generate || f.generate,
		TestCases: s.TestCases,
	}
	if f.url != "" {
		req.URL = f.url
	}
	if f.baseURL != "" {
		req.BaseURL = f.baseURL
	}
	if f.username != "" {
		req.Username = f.username
	}
	if f.password != "" {
		req.Password = f.password
	} else if req.Password == "" {
		req.Password = os.Getenv("PILOT_PASSWORD")
	}
	return req
}

func runSuite(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runOpts.trace {
		provider, err := tracing.Init("testpilot", version, os.Stderr)
		if err != nil {
			return err
		}
		defer func() { _ = provider.Shutdown(context.Background()) }()
	}

	s, err := suite.Load(args[0])
	if err != nil {
		return err
	}

	var extra []runner.Option
	if !runOpts.json {
		extra = append(extra, runner.WithObserver(newProgress(os.Stderr)))
	}
	d, err := newDeps(ctx, extra...)
	if err != nil {
		return err
	}
	defer d.Close()

	summary, err := d.runner.Run(ctx, requestFor(s, runOpts))
	if err != nil {
		if runOpts.json {
			printJSON(failurePayload(err))
		}
		return err
	}

	if runOpts.json {
		printJSON(summary)
	} else {
		fmt.Println(renderSummary(s.Name, summary))
	}
	if !summary.Success {
		return fmt.Errorf("%d of %d tests failed", summary.TestsFailed, summary.TotalTests)
	}
	return nil
}

func failurePayload(err error) map[string]any {
	payload := map[string]any{"success": false, "error": err.Error()}
	var runErr *runner.RunError
	if errors.As(err, &runErr) {
		payload["runId"] = runErr.RunID
	}
	return payload
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
