package parse

import (
	"math"
	"strings"

	"github.com/nettriq/rosfleet/internal/routeros"
)

// PingProbe is one echo in a ping run.
type PingProbe struct {
	Seq    int     `json:"seq"`
	Host   string  `json:"host,omitempty"`
	Size   int     `json:"size,omitempty"`
	TTL    int     `json:"ttl,omitempty"`
	TimeMS float64 `json:"time_ms"`
	Status string  `json:"status,omitempty"`
}

// PingResult aggregates a ping run: summary statistics plus the ordered
// per-probe rows they were computed from.
type PingResult struct {
	Sent     int         `json:"sent"`
	Received int         `json:"received"`
	LossPct  float64     `json:"loss_pct"`
	MinMS    float64     `json:"min_ms"`
	AvgMS    float64     `json:"avg_ms"`
	MaxMS    float64     `json:"max_ms"`
	StdDevMS float64     `json:"stddev_ms"`
	Probes   []PingProbe `json:"probes,omitempty"`
}

// PingOutput parses the CLI ping table. Probe rows are keyed by a numeric
// sequence column; the trailing summary line carries key=value statistics.
// Timed-out probes keep their row with status "timeout" and no latency.
func PingOutput(text string) (*PingResult, error) {
	result := &PingResult{}
	sawSummary := false

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.Contains(line, "sent=") {
			_, kv := SplitLine(line)
			applyPingSummary(result, kv)
			sawSummary = true
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || !isDigit(fields[0]) {
			continue // header or noise
		}
		result.Probes = append(result.Probes, parsePingRow(fields))
	}

	if !sawSummary && len(result.Probes) == 0 {
		return nil, &routeros.ParseError{What: "ping output", Input: firstChars(text, 120)}
	}
	if !sawSummary {
		// Firmware stopped before the summary; derive what we can.
		result.Sent = len(result.Probes)
		for _, p := range result.Probes {
			if p.Status != "timeout" {
				result.Received++
			}
		}
		if result.Sent > 0 {
			result.LossPct = float64(result.Sent-result.Received) / float64(result.Sent) * 100
		}
	}
	result.StdDevMS = probeStdDev(result.Probes)
	return result, nil
}

// PingProbeFromRecord builds a probe from the structured shape the binary
// transport emits for /ping.
func PingProbeFromRecord(rec routeros.Record) PingProbe {
	return PingProbe{
		Seq:    Int(rec["seq"]),
		Host:   rec["host"],
		Size:   Int(rec["size"]),
		TTL:    Int(rec["ttl"]),
		TimeMS: DurationMS(rec["time"]),
		Status: rec["status"],
	}
}

// PingResultFromRecords builds a full result from structured /ping rows;
// the device repeats its aggregate counters on every row, so the last row
// is authoritative for the summary.
func PingResultFromRecords(records []routeros.Record) (*PingResult, error) {
	if len(records) == 0 {
		return nil, &routeros.ParseError{What: "ping records", Input: "empty reply"}
	}
	result := &PingResult{}
	for _, rec := range records {
		result.Probes = append(result.Probes, PingProbeFromRecord(rec))
	}
	applyPingSummary(result, records[len(records)-1])
	result.StdDevMS = probeStdDev(result.Probes)
	return result, nil
}

func applyPingSummary(result *PingResult, kv map[string]string) {
	result.Sent = Int(kv["sent"])
	result.Received = Int(kv["received"])
	result.LossPct = Float(strings.TrimSuffix(kv["packet-loss"], "%"))
	result.MinMS = LatencyMS(kv["min-rtt"])
	result.AvgMS = LatencyMS(kv["avg-rtt"])
	result.MaxMS = LatencyMS(kv["max-rtt"])
}

func parsePingRow(fields []string) PingProbe {
	probe := PingProbe{Seq: Int(fields[0])}
	rest := fields[1:]

	for _, f := range rest {
		if f == "timeout" {
			probe.Status = "timeout"
		}
	}
	if probe.Status == "timeout" {
		if len(rest) > 1 && rest[0] != "timeout" {
			probe.Host = rest[0]
		}
		return probe
	}

	// SEQ HOST SIZE TTL TIME [STATUS]
	if len(rest) > 0 {
		probe.Host = rest[0]
	}
	if len(rest) > 1 {
		probe.Size = Int(rest[1])
	}
	if len(rest) > 2 {
		probe.TTL = Int(rest[2])
	}
	if len(rest) > 3 {
		probe.TimeMS = LatencyMS(rest[3])
	}
	if len(rest) > 4 {
		probe.Status = rest[4]
	}
	return probe
}

func probeStdDev(probes []PingProbe) float64 {
	samples := make([]float64, 0, len(probes))
	for _, p := range probes {
		if p.Status == "timeout" {
			continue
		}
		samples = append(samples, p.TimeMS)
	}
	if len(samples) < 2 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))
	var sq float64
	for _, s := range samples {
		sq += (s - mean) * (s - mean)
	}
	return math.Sqrt(sq / float64(len(samples)))
}

func firstChars(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
