package checker

import (
	"strings"

	"github.com/oceanplexian/vigilo/internal/perfdata"
)

// ParseCheckOutput splits raw plugin output into the first-line summary, the
// remaining long output, and the performance data after the pipe.
func ParseCheckOutput(raw string) (output, longOutput string, perf []perfdata.Value) {
	raw = strings.TrimRight(raw, "\r\n")

	text := raw
	if idx := strings.Index(raw, "|"); idx >= 0 {
		text = strings.TrimSpace(raw[:idx])
		perf = perfdata.Parse(raw[idx+1:])
	}

	lines := strings.SplitN(text, "\n", 2)
	output = strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		longOutput = strings.TrimSpace(lines[1])
	}
	return output, longOutput, perf
}
