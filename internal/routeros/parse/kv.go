// Package parse converts raw device output into typed records. Every
// function here is pure. Each logical entity can arrive in two shapes
// depending on firmware: a structured record from the binary transport, or
// a free-text line of key=value tokens from the CLI. Parsers prefer the
// record shape and fall back to token extraction from text.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// stateLetters maps the leading single-character session state flag to its
// canonical name. Operators rely on this mapping verbatim.
var stateLetters = map[string]string{
	"E": "established",
	"D": "down",
	"I": "idle",
	"A": "active",
	"C": "connect",
	"O": "opensent",
}

// StateFromLetter resolves a session state flag; anything unrecognized is
// reported as "unknown" rather than dropped.
func StateFromLetter(letter string) string {
	if state, ok := stateLetters[strings.ToUpper(letter)]; ok {
		return state
	}
	return "unknown"
}

// SplitLine tokenizes a free-text device line into positional flags (index,
// state letters) and key=value pairs. Keys may be dotted ("remote.address");
// values split on the first '=' only.
func SplitLine(line string) (flags []string, kv map[string]string) {
	kv = map[string]string{}
	for _, token := range strings.Fields(line) {
		key, value, ok := strings.Cut(token, "=")
		if !ok || key == "" {
			flags = append(flags, token)
			continue
		}
		kv[key] = value
	}
	return flags, kv
}

// Bool normalizes device booleans. The binary transport emits
// "true"/"false", older firmware emits "yes"/"no"; a missing field is false.
func Bool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes":
		return true
	default:
		return false
	}
}

// Int parses a device integer, returning 0 for anything unparsable.
func Int(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// Float parses a device float, returning 0 for anything unparsable.
func Float(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

var clockRE = regexp.MustCompile(`^(?:(\d+)ms)?(?:(\d+)us)?$`)

// DurationMS converts the device's mixed "NmsMus" latency notation into a
// single float millisecond value. Either component may be absent:
// "20ms688us" -> 20.688, "688us" -> 0.688, "20ms" -> 20.
func DurationMS(s string) float64 {
	s = strings.TrimSpace(s)
	m := clockRE.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	var ms float64
	if m[1] != "" {
		ms += float64(Int(m[1]))
	}
	if m[2] != "" {
		ms += float64(Int(m[2])) / 1000
	}
	return ms
}

// LatencyMS parses a latency cell that may be "NmsMus" notation, a bare
// float of milliseconds, or a float with an "ms" suffix.
func LatencyMS(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if clockRE.MatchString(s) {
		return DurationMS(s)
	}
	return Float(strings.TrimSuffix(s, "ms"))
}
