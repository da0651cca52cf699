// Package perfdata parses and formats plugin performance data in the
// 'label'=value[unit];warn;crit;min;max wire format.
package perfdata

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a single performance data metric.
type Value struct {
	Label string
	Value float64
	Unit  string
	Warn  *float64
	Crit  *float64
	Min   *float64
	Max   *float64
}

// Parse splits a whitespace-joined perfdata string into values. Malformed
// tokens are skipped; a parse never fails outright because plugin output is
// untrusted.
func Parse(raw string) []Value {
	var values []Value
	for _, tok := range splitTokens(raw) {
		if v, ok := parseToken(tok); ok {
			values = append(values, v)
		}
	}
	return values
}

// Format renders values back to the wire format, whitespace-joined.
func Format(values []Value) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, v.String())
	}
	return strings.Join(parts, " ")
}

// String renders one value as 'label'=value[unit];warn;crit;min;max with
// trailing empty fields trimmed.
func (v Value) String() string {
	label := v.Label
	if strings.ContainsAny(label, " =") || strings.Contains(label, "'") {
		label = "'" + strings.ReplaceAll(label, "'", "''") + "'"
	}
	s := fmt.Sprintf("%s=%s%s", label, formatFloat(v.Value), v.Unit)
	fields := []*float64{v.Warn, v.Crit, v.Min, v.Max}
	last := -1
	for i, f := range fields {
		if f != nil {
			last = i
		}
	}
	for i := 0; i <= last; i++ {
		s += ";"
		if fields[i] != nil {
			s += formatFloat(*fields[i])
		}
	}
	return s
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// splitTokens splits on whitespace while keeping quoted labels intact.
func splitTokens(raw string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	for _, r := range raw {
		switch {
		case r == '\'':
			inQuote = !inQuote
			cur.WriteRune(r)
		case (r == ' ' || r == '\t' || r == '\n') && !inQuote:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func parseToken(tok string) (Value, bool) {
	eq := -1
	if strings.HasPrefix(tok, "'") {
		end := strings.Index(tok[1:], "'")
		if end < 0 {
			return Value{}, false
		}
		eq = end + 2
		if eq >= len(tok) || tok[eq] != '=' {
			return Value{}, false
		}
	} else {
		eq = strings.Index(tok, "=")
		if eq < 0 {
			return Value{}, false
		}
	}

	label := strings.Trim(tok[:eq], "'")
	if label == "" {
		return Value{}, false
	}

	fields := strings.Split(tok[eq+1:], ";")
	num, unit, ok := splitValueUnit(fields[0])
	if !ok {
		return Value{}, false
	}

	v := Value{Label: label, Value: num, Unit: unit}
	thresholds := []**float64{&v.Warn, &v.Crit, &v.Min, &v.Max}
	for i := 1; i < len(fields) && i <= 4; i++ {
		if fields[i] == "" {
			continue
		}
		if f, err := strconv.ParseFloat(fields[i], 64); err == nil {
			*thresholds[i-1] = &f
		}
	}
	return v, true
}

func splitValueUnit(s string) (float64, string, bool) {
	if s == "" {
		return 0, "", false
	}
	end := len(s)
	for end > 0 {
		c := s[end-1]
		if c >= '0' && c <= '9' || c == '.' || c == '-' || c == '+' || c == 'e' || c == 'E' {
			break
		}
		end--
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, "", false
	}
	return f, s[end:], true
}
