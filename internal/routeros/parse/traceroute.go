package parse

import (
	"strings"

	"github.com/nettriq/rosfleet/internal/routeros"
)

// TracerouteHop is one hop row in a traceroute report. A hop that never
// answered still gets a row: address "*", loss and sent from the partial
// line.
type TracerouteHop struct {
	Index    int     `json:"index"`
	Address  string  `json:"address"`
	LossPct  float64 `json:"loss_pct"`
	Sent     int     `json:"sent"`
	LastMS   float64 `json:"last_ms"`
	AvgMS    float64 `json:"avg_ms"`
	BestMS   float64 `json:"best_ms"`
	WorstMS  float64 `json:"worst_ms"`
	StdDevMS float64 `json:"stddev_ms"`
	TimedOut bool    `json:"timed_out"`
}

// TracerouteResult is the final report of a traceroute run.
type TracerouteResult struct {
	Target string          `json:"target,omitempty"`
	Hops   []TracerouteHop `json:"hops"`
}

// TracerouteOutput parses CLI traceroute text. The device streams one
// report block per probe round, each opened by the column header; only the
// last complete block is authoritative, so the output is split on the
// header marker and the final segment wins.
func TracerouteOutput(text string) (*TracerouteResult, error) {
	blocks := splitReportBlocks(text)
	if len(blocks) == 0 {
		return nil, &routeros.ParseError{What: "traceroute output", Input: firstChars(text, 120)}
	}
	last := blocks[len(blocks)-1]

	result := &TracerouteResult{}
	for _, line := range last {
		hop, ok := parseTracerouteRow(line)
		if !ok {
			continue
		}
		result.Hops = append(result.Hops, hop)
	}
	if len(result.Hops) == 0 {
		return nil, &routeros.ParseError{What: "traceroute report", Input: firstChars(strings.Join(last, "\n"), 120)}
	}
	return result, nil
}

// isReportHeader matches the block-opening column header.
func isReportHeader(line string) bool {
	return strings.Contains(line, "ADDRESS") && strings.Contains(line, "LOSS")
}

func splitReportBlocks(text string) [][]string {
	var blocks [][]string
	var current []string
	open := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, "\r")
		if isReportHeader(line) {
			if open {
				blocks = append(blocks, current)
			}
			current = nil
			open = true
			continue
		}
		if open && strings.TrimSpace(line) != "" {
			current = append(current, line)
		}
	}
	if open {
		blocks = append(blocks, current)
	}
	return blocks
}

func parseTracerouteRow(line string) (TracerouteHop, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 || !isDigit(fields[0]) {
		return TracerouteHop{}, false
	}

	hop := TracerouteHop{Index: Int(fields[0])}
	rest := fields[1:]

	// A timed-out hop has no resolved address; the loss column comes first.
	if strings.HasSuffix(rest[0], "%") {
		hop.Address = "*"
		hop.TimedOut = true
	} else {
		hop.Address = rest[0]
		rest = rest[1:]
	}

	if len(rest) > 0 {
		hop.LossPct = Float(strings.TrimSuffix(rest[0], "%"))
		rest = rest[1:]
	}
	if len(rest) > 0 {
		hop.Sent = Int(rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 {
		if rest[0] == "timeout" {
			hop.TimedOut = true
			return hop, true
		}
		hop.LastMS = LatencyMS(rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 {
		hop.AvgMS = LatencyMS(rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 {
		hop.BestMS = LatencyMS(rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 {
		hop.WorstMS = LatencyMS(rest[0])
		rest = rest[1:]
	}
	if len(rest) > 0 {
		hop.StdDevMS = LatencyMS(rest[0])
	}
	return hop, true
}
