package probe

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// maxProbeLine bounds the single line parsed from probe output.
const maxProbeLine = 256

// firstLine returns the fields of the first output line, split on commas.
// Output past maxProbeLine bytes is ignored.
func firstLine(out []byte) []string {
	if len(out) > maxProbeLine {
		out = out[:maxProbeLine]
	}
	if i := bytes.IndexByte(out, '\n'); i >= 0 {
		out = out[:i]
	}
	line := strings.TrimSpace(string(out))
	if line == "" {
		return nil
	}
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

// field returns fields[i], or "" when absent.
func field(fields []string, i int) string {
	if i < len(fields) {
		return fields[i]
	}
	return ""
}

func missing(s string) bool {
	return s == "" || strings.EqualFold(s, "N/A") || strings.EqualFold(s, "unknown")
}

func parsePositiveInt(s string) *int {
	if missing(s) {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func parseNonNegativeFloat(s string) *float64 {
	if missing(s) {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseRate reduces "num/den" to a float. A bare number is num/1.
func parseRate(s string) (float64, bool) {
	if missing(s) {
		return 0, false
	}
	num, den, isRatio := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, false
	}
	d := 1.0
	if isRatio {
		d, err = strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err != nil || d == 0 {
			return 0, false
		}
	}
	r := n / d
	if r <= 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, false
	}
	return r, true
}

var pixFmtDepth = regexp.MustCompile(`(\d+)(le|be)$`)

// bitDepth prefers bits_per_raw_sample and falls back to the pixel format
// name: "yuv420p10le" is 10 bits, plain 4:2:0/4:2:2/4:4:4 formats are 8.
func bitDepth(rawBits, pixFmt string) *int {
	if n := parsePositiveInt(rawBits); n != nil {
		return n
	}
	if missing(pixFmt) {
		return nil
	}
	if m := pixFmtDepth.FindStringSubmatch(pixFmt); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 && n <= 16 {
			return &n
		}
		return nil
	}
	switch {
	case strings.HasPrefix(pixFmt, "yuv"), strings.HasPrefix(pixFmt, "nv"),
		pixFmt == "rgb24", pixFmt == "bgr24", pixFmt == "gray":
		eight := 8
		return &eight
	}
	return nil
}
