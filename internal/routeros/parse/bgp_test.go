package parse

import (
	"testing"

	"github.com/nettriq/rosfleet/internal/routeros"
)

func TestBGPSessionFromLine(t *testing.T) {
	line := "0 E name=GMIX-1 remote.address=10.98.80.44 remote.as=138089 uptime=1h2m3s prefix-count=42"
	session, err := BGPSessionFromLine(line)
	if err != nil {
		t.Fatalf("BGPSessionFromLine: %v", err)
	}

	if session.State != "established" {
		t.Errorf("State = %q, want established", session.State)
	}
	if !session.Established {
		t.Error("Established = false, want true")
	}
	if session.Name != "GMIX-1" {
		t.Errorf("Name = %q, want GMIX-1", session.Name)
	}
	if session.RemoteAddress != "10.98.80.44" {
		t.Errorf("RemoteAddress = %q, want 10.98.80.44", session.RemoteAddress)
	}
	if session.RemoteAS != 138089 {
		t.Errorf("RemoteAS = %d, want 138089", session.RemoteAS)
	}
	if session.PrefixCount != 42 {
		t.Errorf("PrefixCount = %d, want 42", session.PrefixCount)
	}
}

func TestBGPSessionFromLineDownState(t *testing.T) {
	session, err := BGPSessionFromLine("1 D name=peer2 remote.address=192.0.2.1/32")
	if err != nil {
		t.Fatalf("BGPSessionFromLine: %v", err)
	}
	if session.State != "down" {
		t.Errorf("State = %q, want down", session.State)
	}
	if session.Established {
		t.Error("Established = true, want false")
	}
	if session.RemoteAddress != "192.0.2.1" {
		t.Errorf("RemoteAddress = %q, want prefix length stripped", session.RemoteAddress)
	}
}

func TestBGPSessionFromLineUnknownState(t *testing.T) {
	session, err := BGPSessionFromLine("2 Z name=peer3 remote.as=65000")
	if err != nil {
		t.Fatalf("BGPSessionFromLine: %v", err)
	}
	if session.State != "unknown" {
		t.Errorf("State = %q, want unknown", session.State)
	}
}

func TestBGPSessionFromLineEmpty(t *testing.T) {
	if _, err := BGPSessionFromLine("garbage without pairs"); err == nil {
		t.Fatal("expected parse error for line without key=value pairs")
	}
}

func TestBGPSessionFromRecord(t *testing.T) {
	session := BGPSessionFromRecord(routeros.Record{
		"name":           "CORE-1",
		"remote.address": "10.0.0.1/32",
		"remote.as":      "65001",
		"established":    "true",
		"uptime":         "20ms688us",
		"prefix-count":   "7",
	})
	if session.State != "established" {
		t.Errorf("State = %q, want established", session.State)
	}
	if session.UptimeMS != 20.688 {
		t.Errorf("UptimeMS = %v, want 20.688", session.UptimeMS)
	}
	if session.RemoteAddress != "10.0.0.1" {
		t.Errorf("RemoteAddress = %q, want 10.0.0.1", session.RemoteAddress)
	}
}

func TestBGPConnectionFromRecord(t *testing.T) {
	conn := BGPConnectionFromRecord(routeros.Record{
		".id":            "*1",
		"name":           "upstream",
		"remote.address": "203.0.113.9",
		"remote.as":      "64512",
		"disabled":       "no",
		"connect":        "yes",
		"listen":         "yes",
	})
	if conn.ID != "*1" || conn.Name != "upstream" {
		t.Fatalf("unexpected identity: %+v", conn)
	}
	if conn.Disabled {
		t.Error("Disabled = true, want false")
	}
	if !conn.Connect || !conn.Listen {
		t.Error("Connect/Listen should both be true")
	}
}

func TestBGPAdvertisementFromRecordPrefersDst(t *testing.T) {
	adv := BGPAdvertisementFromRecord(routeros.Record{
		"dst":     "10.10.0.0/16",
		"prefix":  "ignored",
		"nexthop": "192.0.2.254",
	})
	if adv.Prefix != "10.10.0.0/16" {
		t.Errorf("Prefix = %q, want dst value", adv.Prefix)
	}
}
