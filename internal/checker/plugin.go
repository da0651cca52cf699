package checker

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/oceanplexian/vigilo/internal/objects"
)

const maxPluginOutput = 8192

// DefaultPluginTimeout applies when a command carries no timeout.
const DefaultPluginTimeout = time.Minute

// PluginCommand runs an external monitoring plugin through the shell and
// maps its exit code and output onto a check result.
type PluginCommand struct {
	CommandName    string
	CommandLine    string
	CommandTimeout time.Duration
}

// Name returns the unique command name.
func (p *PluginCommand) Name() string { return p.CommandName }

// Timeout returns the enforced execution timeout.
func (p *PluginCommand) Timeout() time.Duration {
	if p.CommandTimeout > 0 {
		return p.CommandTimeout
	}
	return DefaultPluginTimeout
}

// Execute runs the command line, substituting $MACRO$ tokens when resolved
// macros are supplied, and fills cr with the state, output and perfdata.
func (p *PluginCommand) Execute(c *objects.Checkable, cr *objects.CheckResult, macros map[string]string, useResolvedMacros bool) error {
	line := p.CommandLine
	if useResolvedMacros {
		for k, v := range macros {
			line = strings.ReplaceAll(line, "$"+k+"$", v)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", line)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cr.ExecutionStart = time.Now()
	err := cmd.Run()
	cr.ExecutionEnd = time.Now()

	exitCode := 0
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			cr.State = objects.StateUnknown
			cr.Output = fmt.Sprintf("(Check command '%s' timed out after %.0f seconds)",
				p.CommandName, p.Timeout().Seconds())
			return nil
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
				exitCode = ws.ExitStatus()
			} else {
				exitCode = 3
			}
		} else {
			// Could not execute at all (e.g., command not found).
			cr.State = objects.StateUnknown
			cr.Output = fmt.Sprintf("(Could not execute plugin: %v)", err)
			return nil
		}
	}

	out := stdout.String()
	if out == "" && stderr.Len() > 0 {
		out = "(No output on stdout) stderr: " + stderr.String()
	}
	if len(out) > maxPluginOutput {
		out = out[:maxPluginOutput]
	}

	cr.State = objects.StateFromExitCode(exitCode)
	cr.Output, cr.LongOutput, cr.PerformanceData = ParseCheckOutput(out)
	return nil
}
