package backups

import "strings"

// sectionCounters maps export section headers to the summary field each
// "add" line under them increments.
var sectionCounters = map[string]func(*ConfigSummary){
	"/interface":          func(s *ConfigSummary) { s.Interfaces++ },
	"/ip address":         func(s *ConfigSummary) { s.Addresses++ },
	"/ipv6 address":       func(s *ConfigSummary) { s.Addresses++ },
	"/ip firewall filter": func(s *ConfigSummary) { s.FirewallRules++ },
	"/ip firewall nat":    func(s *ConfigSummary) { s.NATRules++ },
	"/ip route":           func(s *ConfigSummary) { s.Routes++ },
	"/ipv6 route":         func(s *ConfigSummary) { s.Routes++ },
	"/user":               func(s *ConfigSummary) { s.Users++ },
	"/system script":      func(s *ConfigSummary) { s.Scripts++ },
}

// Summarize scans an exported configuration for known section markers and
// counts the entries under each. The result is advisory metadata: malformed
// sections are simply skipped and never fail a backup.
func Summarize(export string) *ConfigSummary {
	summary := &ConfigSummary{}
	var bump func(*ConfigSummary)

	for _, raw := range strings.Split(export, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "/") {
			bump = matchSection(line)
			continue
		}
		if bump != nil && strings.HasPrefix(line, "add ") {
			bump(summary)
		}
	}
	return summary
}

// matchSection resolves a section header to its counter, preferring the
// longest match so "/ip firewall nat" does not count as "/ip firewall filter".
func matchSection(header string) func(*ConfigSummary) {
	var best string
	for prefix := range sectionCounters {
		if header == prefix || strings.HasPrefix(header, prefix+" ") {
			if len(prefix) > len(best) {
				best = prefix
			}
		}
	}
	if best == "" {
		return nil
	}
	return sectionCounters[best]
}
