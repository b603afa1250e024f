package parse

import "testing"

func TestStateFromLetter(t *testing.T) {
	cases := map[string]string{
		"E": "established",
		"D": "down",
		"I": "idle",
		"A": "active",
		"C": "connect",
		"O": "opensent",
		"e": "established",
		"X": "unknown",
		"":  "unknown",
	}
	for letter, want := range cases {
		if got := StateFromLetter(letter); got != want {
			t.Errorf("StateFromLetter(%q) = %q, want %q", letter, got, want)
		}
	}
}

func TestSplitLine(t *testing.T) {
	flags, kv := SplitLine("0 E name=GMIX-1 remote.address=10.98.80.44 uptime=1h2m3s")
	if len(flags) != 2 || flags[0] != "0" || flags[1] != "E" {
		t.Fatalf("flags = %v, want [0 E]", flags)
	}
	if kv["name"] != "GMIX-1" {
		t.Errorf("kv[name] = %q, want GMIX-1", kv["name"])
	}
	if kv["remote.address"] != "10.98.80.44" {
		t.Errorf("kv[remote.address] = %q, want 10.98.80.44", kv["remote.address"])
	}
}

func TestSplitLineValueWithEquals(t *testing.T) {
	_, kv := SplitLine("comment=a=b")
	if kv["comment"] != "a=b" {
		t.Errorf("kv[comment] = %q, want a=b", kv["comment"])
	}
}

func TestDurationMS(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"20ms688us", 20.688},
		{"688us", 0.688},
		{"20ms", 20},
		{"", 0},
		{"bogus", 0},
	}
	for _, tc := range cases {
		if got := DurationMS(tc.in); got != tc.want {
			t.Errorf("DurationMS(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLatencyMS(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"20ms688us", 20.688},
		{"12.5", 12.5},
		{"12.5ms", 12.5},
		{"", 0},
	}
	for _, tc := range cases {
		if got := LatencyMS(tc.in); got != tc.want {
			t.Errorf("LatencyMS(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestBool(t *testing.T) {
	for _, truthy := range []string{"true", "yes", " TRUE "} {
		if !Bool(truthy) {
			t.Errorf("Bool(%q) = false, want true", truthy)
		}
	}
	for _, falsy := range []string{"false", "no", "", "1"} {
		if Bool(falsy) {
			t.Errorf("Bool(%q) = true, want false", falsy)
		}
	}
}
