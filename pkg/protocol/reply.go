package protocol

import (
	"math"
	"strconv"
	"strings"
)

const Greeting = "Hello from QuickBot\n"

// FormatDuty renders the commanded duty pair, e.g. "(10, -5)\n".
func FormatDuty(left, right int) string {
	return "(" + strconv.Itoa(left) + ", " + strconv.Itoa(right) + ")\n"
}

// FormatList renders already-formatted values as "[a, b, ...]\n".
func FormatList(values ...string) string {
	return "[" + strings.Join(values, ", ") + "]\n"
}

func FormatInts(values ...int) string {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = strconv.Itoa(v)
	}
	return FormatList(s...)
}

// FormatFloat always shows a decimal point or exponent so that velocities are
// recognisably real numbers on the base station ("0.0", "0.125", "1e-05").
func FormatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsNaN(v):
		return "nan"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
