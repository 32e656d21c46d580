package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strings"

	"github.com/mdekker/flowline"
	"github.com/mdekker/flowline/pkg/execctx"
)

// maxHTTPBody caps how much of a response body is persisted as job output.
const maxHTTPBody = 1 << 20

// ShellArgs are the arguments for the built-in "shell" job type.
type ShellArgs struct {
	Command string `json:"command"`
}

// ShellResult is persisted as the output of a "shell" job.
type ShellResult struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// HTTPArgs are the arguments for the built-in "http" job type.
type HTTPArgs struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Body   string `json:"body,omitempty"`
}

// HTTPResult is persisted as the output of an "http" job.
type HTTPResult struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// registerBuiltinHandlers registers the shell and http job types. Their
// returned results flow through the store bound in the execution context.
func registerBuiltinHandlers(eng *flowline.Engine, cfg *Config) {
	eng.Register("shell", func(ctx context.Context, args ShellArgs) (ShellResult, error) {
		slog.Info("executing shell command", "job_id", execctx.JobID(ctx), "command", args.Command)

		cmd := exec.CommandContext(ctx, "sh", "-c", args.Command)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		result := ShellResult{Stdout: stdout.String(), Stderr: stderr.String()}
		if err != nil {
			return result, fmt.Errorf("shell command failed: %w", err)
		}
		return result, nil
	}, flowline.Timeout(cfg.ShellTimeout))

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	eng.Register("http", func(ctx context.Context, args HTTPArgs) (HTTPResult, error) {
		slog.Info("executing http request", "job_id", execctx.JobID(ctx), "method", args.Method, "url", args.URL)

		var body io.Reader
		if args.Body != "" {
			body = strings.NewReader(args.Body)
		}
		req, err := http.NewRequestWithContext(ctx, args.Method, args.URL, body)
		if err != nil {
			return HTTPResult{}, flowline.NoRetry(fmt.Errorf("build request: %w", err))
		}

		resp, err := client.Do(req)
		if err != nil {
			return HTTPResult{}, fmt.Errorf("http request failed: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxHTTPBody))
		if err != nil {
			return HTTPResult{}, fmt.Errorf("read response: %w", err)
		}

		result := HTTPResult{Status: resp.StatusCode, Body: string(respBody)}
		if resp.StatusCode >= 500 {
			return result, fmt.Errorf("server returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return result, flowline.NoRetry(fmt.Errorf("client error %d", resp.StatusCode))
		}
		return result, nil
	}, flowline.Timeout(cfg.HTTPTimeout))
}
