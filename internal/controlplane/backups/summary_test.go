package backups

import "testing"

const sampleExport = `# 2026-03-01 02:00:00 by RouterOS 7.14.2
/interface
add name=ether1
add name=ether2
/ip address
add address=10.0.0.1/24 interface=ether1
/ip firewall filter
add chain=input action=accept
add chain=forward action=drop
add chain=input action=drop
/ip firewall nat
add chain=srcnat action=masquerade
/ip route
add dst-address=0.0.0.0/0 gateway=10.0.0.254
/user
add name=ops group=full
/system script
add name=nightly source="/export"
`

func TestSummarize(t *testing.T) {
	summary := Summarize(sampleExport)

	if summary.Interfaces != 2 {
		t.Errorf("Interfaces = %d, want 2", summary.Interfaces)
	}
	if summary.Addresses != 1 {
		t.Errorf("Addresses = %d, want 1", summary.Addresses)
	}
	if summary.FirewallRules != 3 {
		t.Errorf("FirewallRules = %d, want 3", summary.FirewallRules)
	}
	if summary.NATRules != 1 {
		t.Errorf("NATRules = %d, want 1", summary.NATRules)
	}
	if summary.Routes != 1 {
		t.Errorf("Routes = %d, want 1", summary.Routes)
	}
	if summary.Users != 1 {
		t.Errorf("Users = %d, want 1", summary.Users)
	}
	if summary.Scripts != 1 {
		t.Errorf("Scripts = %d, want 1", summary.Scripts)
	}
}

func TestSummarizeNATNotCountedAsFilter(t *testing.T) {
	summary := Summarize("/ip firewall nat\nadd chain=srcnat\n")
	if summary.FirewallRules != 0 {
		t.Errorf("FirewallRules = %d, want 0 for nat-only export", summary.FirewallRules)
	}
	if summary.NATRules != 1 {
		t.Errorf("NATRules = %d, want 1", summary.NATRules)
	}
}

func TestSummarizeUnknownSectionsIgnored(t *testing.T) {
	summary := Summarize("/queue simple\nadd name=q1\n/interface\nadd name=ether1\n")
	if summary.Interfaces != 1 {
		t.Errorf("Interfaces = %d, want 1", summary.Interfaces)
	}
}
