package api

import (
	"reflect"
	"testing"
)

func TestTranslateLineInlinePath(t *testing.T) {
	command, args, section, err := translateLine("/ip firewall filter add chain=input action=accept", "")
	if err != nil {
		t.Fatalf("translateLine: %v", err)
	}
	if command != "/ip/firewall/filter/add" {
		t.Errorf("command = %q, want /ip/firewall/filter/add", command)
	}
	want := map[string]string{"chain": "input", "action": "accept"}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
	if section != "" {
		t.Errorf("section = %q, want unchanged", section)
	}
}

func TestTranslateLineSectionHeader(t *testing.T) {
	command, args, section, err := translateLine("/ip address", "")
	if err != nil {
		t.Fatalf("translateLine: %v", err)
	}
	if command != "" || args != nil {
		t.Errorf("header should not execute, got command=%q args=%v", command, args)
	}
	if section != "/ip/address" {
		t.Errorf("section = %q, want /ip/address", section)
	}
}

func TestTranslateLineContinuation(t *testing.T) {
	command, args, _, err := translateLine(`add address=10.0.0.1/24 interface=ether1 comment="core uplink"`, "/ip/address")
	if err != nil {
		t.Fatalf("translateLine: %v", err)
	}
	if command != "/ip/address/add" {
		t.Errorf("command = %q, want /ip/address/add", command)
	}
	if args["comment"] != "core uplink" {
		t.Errorf("comment = %q, want quotes stripped", args["comment"])
	}
	if args["address"] != "10.0.0.1/24" {
		t.Errorf("address = %q, want 10.0.0.1/24", args["address"])
	}
}

func TestTranslateLineContinuationWithoutSection(t *testing.T) {
	if _, _, _, err := translateLine("add chain=input", ""); err == nil {
		t.Fatal("expected error for continuation line outside any section")
	}
}

func TestTranslateLinePositionalFlag(t *testing.T) {
	_, args, _, err := translateLine("/ip firewall filter add disabled", "")
	if err != nil {
		t.Fatalf("translateLine: %v", err)
	}
	if args["disabled"] != "yes" {
		t.Errorf("disabled = %q, want yes", args["disabled"])
	}
}

func TestSplitTokensUnterminatedQuote(t *testing.T) {
	if _, err := splitTokens(`add comment="broken`); err == nil {
		t.Fatal("expected error for unterminated quote")
	}
}

func TestEncodeArgs(t *testing.T) {
	words := EncodeArgs(map[string]string{
		"?name":   "admin",
		"address": "10.0.0.0/24",
		".id":     "*3",
	})
	// Keys sort bytewise, so ".id" precedes "?name" precedes "address".
	want := []string{"=.id=*3", "?name=admin", "=address=10.0.0.0/24"}
	if !reflect.DeepEqual(words, want) {
		t.Errorf("EncodeArgs = %v, want %v", words, want)
	}
}

func TestEncodeArgsEmpty(t *testing.T) {
	if words := EncodeArgs(nil); words != nil {
		t.Errorf("EncodeArgs(nil) = %v, want nil", words)
	}
}
