// Package iconutil compiles staged icon sets with the macOS iconutil tool.
package iconutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/cochaviz/squeeze/internal/bundle"
)

// DefaultTool is looked up on PATH when Compiler.Tool is empty.
const DefaultTool = "iconutil"

var _ bundle.IconCompiler = (*Compiler)(nil)

// RunResult records one invocation of the tool.
type RunResult struct {
	// Launched is false when the process could not be started at all.
	Launched bool
	ExitCode int
	Output   string
}

// RunError reports a failed or unlaunchable invocation.
type RunError struct {
	Command []string
	Result  RunResult
	Err     error
}

func (e *RunError) Error() string {
	command := strings.Join(e.Command, " ")
	if !e.Result.Launched {
		return fmt.Sprintf("unable to launch %q: %v", command, e.Err)
	}
	msg := fmt.Sprintf("%q exited with status %d", command, e.Result.ExitCode)
	if out := strings.TrimSpace(e.Result.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Compiler runs `iconutil -c icns -o <output> <staging>`.
type Compiler struct {
	// Tool is the program name or path, DefaultTool if empty.
	Tool   string
	Logger *slog.Logger
}

func (c *Compiler) logger() *slog.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Compiler) tool() string {
	if c != nil && c.Tool != "" {
		return c.Tool
	}
	return DefaultTool
}

// Available reports whether the tool can be resolved.
func (c *Compiler) Available() bool {
	_, err := exec.LookPath(c.tool())
	return err == nil
}

// Compile waits for the tool to exit. A non-zero exit status is returned as a
// *RunError carrying the combined output.
func (c *Compiler) Compile(ctx context.Context, stagingDir, outputIconFile string) error {
	command := []string{c.tool(), "-c", "icns", "-o", outputIconFile, stagingDir}
	logger := c.logger().With("tool", command[0])
	logger.Debug("running icon compiler", "command", strings.Join(command, " "))

	result, err := run(ctx, command)
	if err != nil {
		logger.Error("icon compiler failed",
			"launched", result.Launched,
			"exit_code", result.ExitCode,
			"output", strings.TrimSpace(result.Output),
		)
		return &RunError{Command: command, Result: result, Err: err}
	}

	logger.Debug("icon compiler finished", "output_file", outputIconFile)
	return nil
}

func run(ctx context.Context, command []string) (RunResult, error) {
	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Start(); err != nil {
		return RunResult{ExitCode: -1}, err
	}

	err := cmd.Wait()
	result := RunResult{
		Launched: true,
		ExitCode: cmd.ProcessState.ExitCode(),
		Output:   output.String(),
	}

	return result, err
}

// ExitCode returns the exit status carried by err, or -1.
func ExitCode(err error) int {
	var runErr *RunError
	if errors.As(err, &runErr) && runErr.Result.Launched {
		return runErr.Result.ExitCode
	}
	return -1
}
