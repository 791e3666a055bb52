package summarizer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const (
	// PromptFilePattern names the transient prompt files in the work dir.
	PromptFilePattern = "textsum-prompt-*.txt"
	InputPlaceholder  = "{input}"

	cliWaitDelay        = 2 * time.Second
	maxLoggedStderrSize = 512
)

type CLIConfig struct {
	// Binary is a name looked up in PATH or a path to the executable.
	Binary string
	// Args may reference the prompt file with InputPlaceholder. Without a
	// placeholder the path is appended as the last argument.
	Args        []string
	VersionFlag string
	// WorkDir holds prompt files. Empty means os.TempDir().
	WorkDir           string
	ProbeTimeout      time.Duration
	InvocationTimeout time.Duration
}

// CLITool runs an external summarization executable and exchanges the prompt
// through a transient file.
type CLITool struct {
	cfg CLIConfig
	log *slog.Logger
}

func NewCLITool(cfg CLIConfig, log *slog.Logger) *CLITool {
	return &CLITool{cfg: cfg, log: log}
}

func (c *CLITool) Name() string {
	return filepath.Base(c.cfg.Binary)
}

// Probe runs the binary with its version flag and reports whether it exited
// successfully within ProbeTimeout.
func (c *CLITool) Probe(ctx context.Context) bool {
	path, err := exec.LookPath(c.cfg.Binary)
	if err != nil {
		c.log.InfoContext(ctx, "Tool is not found",
			"error", err,
			"binary", c.cfg.Binary)

		return false
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	var args []string
	if flag := strings.TrimSpace(c.cfg.VersionFlag); flag != "" {
		args = append(args, flag)
	}

	cmd := exec.CommandContext(probeCtx, path, args...) //nolint:gosec // Configured by the operator
	cmd.WaitDelay = cliWaitDelay

	out, err := cmd.CombinedOutput()
	if err != nil {
		c.log.WarnContext(ctx, "Tool probe failed",
			"error", err,
			"binary", c.cfg.Binary,
			"path", path,
			"timeout", c.cfg.ProbeTimeout,
			"output", truncateForLog(string(out)))

		return false
	}

	c.log.InfoContext(ctx, "Tool is available",
		"binary", c.cfg.Binary,
		"path", path,
		"version", firstLine(string(out)))

	return true
}

// Generate writes the prompt to a transient file, runs the tool against it
// and returns its stdout. The file is removed on every path.
func (c *CLITool) Generate(ctx context.Context, prompt string) (string, error) {
	promptPath, release, err := acquirePromptFile(c.cfg.WorkDir, prompt)
	if err != nil {
		return "", fmt.Errorf("acquire prompt file: %w", err)
	}
	defer func() {
		if releaseErr := release(); releaseErr != nil {
			c.log.ErrorContext(ctx, "Failed to release prompt file",
				"error", releaseErr,
				"path", promptPath)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.InvocationTimeout)
	defer cancel()

	//nolint:gosec // Configured by the operator
	cmd := exec.CommandContext(runCtx, c.cfg.Binary, c.args(promptPath)...)
	cmd.WaitDelay = cliWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err = cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("run tool: %w (%w)", ctxErr, err)
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("run tool: timed out after %s: %w", c.cfg.InvocationTimeout, err)
		}

		return "", fmt.Errorf("run tool (stderr = %q): %w", truncateForLog(stderr.String()), err)
	}

	return stdout.String(), nil
}

// SweepStale removes prompt files left behind by killed processes.
func (c *CLITool) SweepStale(now time.Time, olderThan time.Duration) (int, error) {
	return SweepPromptFiles(c.cfg.WorkDir, olderThan, now)
}

func (c *CLITool) args(promptPath string) []string {
	args := make([]string, 0, len(c.cfg.Args)+1)
	substituted := false

	for _, arg := range c.cfg.Args {
		if strings.Contains(arg, InputPlaceholder) {
			arg = strings.ReplaceAll(arg, InputPlaceholder, promptPath)
			substituted = true
		}
		args = append(args, arg)
	}

	if !substituted {
		args = append(args, promptPath)
	}

	return args
}

func acquirePromptFile(dir string, prompt string) (string, func() error, error) {
	f, err := os.CreateTemp(dir, PromptFilePattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}

	path := f.Name()
	release := func() error {
		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			return fmt.Errorf("remove temp file: %w", removeErr)
		}

		return nil
	}

	if _, err = f.WriteString(prompt); err != nil {
		return "", nil, errors.Join(fmt.Errorf("write temp file: %w", err), f.Close(), release())
	}

	if err = f.Close(); err != nil {
		return "", nil, errors.Join(fmt.Errorf("close temp file: %w", err), release())
	}

	return path, release, nil
}

// SweepPromptFiles removes prompt files in dir modified more than olderThan
// before now. It returns the number of removed files.
func SweepPromptFiles(dir string, olderThan time.Duration, now time.Time) (int, error) {
	if dir == "" {
		dir = os.TempDir()
	}

	matches, err := filepath.Glob(filepath.Join(dir, PromptFilePattern))
	if err != nil {
		return 0, fmt.Errorf("glob prompt files: %w", err)
	}

	removed := 0
	var errs []error

	for _, path := range matches {
		info, statErr := os.Stat(path)
		if statErr != nil {
			if !errors.Is(statErr, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("stat prompt file: %w", statErr))
			}
			continue
		}

		if now.Sub(info.ModTime()) <= olderThan {
			continue
		}

		if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove prompt file: %w", removeErr))
			continue
		}
		removed++
	}

	return removed, errors.Join(errs...)
}

func firstLine(s string) string {
	scanner := bufio.NewScanner(strings.NewReader(s))
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text())
	}

	return ""
}

func truncateForLog(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLoggedStderrSize {
		return s
	}

	return s[:maxLoggedStderrSize] + "..."
}
