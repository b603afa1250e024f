package parse

import (
	"strings"

	"github.com/nettriq/rosfleet/internal/routeros"
)

// BGPConnection is a configured BGP peer (/routing/bgp/connection/print).
type BGPConnection struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	RemoteAddress string `json:"remote_address"`
	RemoteAS      int    `json:"remote_as"`
	LocalRole     string `json:"local_role,omitempty"`
	RouterID      string `json:"router_id,omitempty"`
	RoutingTable  string `json:"routing_table,omitempty"`
	Disabled      bool   `json:"disabled"`
	Connect       bool   `json:"connect"`
	Listen        bool   `json:"listen"`
}

// BGPSession is a live peering session (/routing/bgp/session/print).
type BGPSession struct {
	Name          string  `json:"name"`
	State         string  `json:"state"`
	Established   bool    `json:"established"`
	RemoteAddress string  `json:"remote_address"`
	RemoteAS      int     `json:"remote_as"`
	RemoteID      string  `json:"remote_id,omitempty"`
	LocalAddress  string  `json:"local_address,omitempty"`
	LocalAS       int     `json:"local_as,omitempty"`
	Uptime        string  `json:"uptime,omitempty"`
	UptimeMS      float64 `json:"uptime_ms,omitempty"`
	PrefixCount   int     `json:"prefix_count"`
}

// BGPAdvertisement is one advertised prefix (/routing/bgp/advertisements/print).
type BGPAdvertisement struct {
	Peer        string `json:"peer,omitempty"`
	Prefix      string `json:"prefix"`
	Nexthop     string `json:"nexthop,omitempty"`
	Origin      string `json:"origin,omitempty"`
	ASPath      string `json:"as_path,omitempty"`
	Communities string `json:"communities,omitempty"`
}

// BGPConnectionFromRecord builds the canonical connection view from a
// structured record.
func BGPConnectionFromRecord(rec routeros.Record) BGPConnection {
	return BGPConnection{
		ID:            rec[".id"],
		Name:          rec["name"],
		RemoteAddress: stripPrefixLen(rec["remote.address"]),
		RemoteAS:      Int(rec["remote.as"]),
		LocalRole:     rec["local.role"],
		RouterID:      rec["router-id"],
		RoutingTable:  rec["routing-table"],
		Disabled:      Bool(rec["disabled"]),
		Connect:       Bool(rec["connect"]),
		Listen:        Bool(rec["listen"]),
	}
}

// BGPSessionFromRecord builds the canonical session view from a structured
// record. Firmware that emits sessions this way carries an explicit
// "established" boolean instead of the state letter.
func BGPSessionFromRecord(rec routeros.Record) BGPSession {
	session := BGPSession{
		Name:          rec["name"],
		RemoteAddress: stripPrefixLen(rec["remote.address"]),
		RemoteAS:      Int(rec["remote.as"]),
		RemoteID:      rec["remote.id"],
		LocalAddress:  stripPrefixLen(rec["local.address"]),
		LocalAS:       Int(rec["local.as"]),
		Uptime:        rec["uptime"],
		UptimeMS:      DurationMS(rec["uptime"]),
		PrefixCount:   Int(rec["prefix-count"]),
		Established:   Bool(rec["established"]),
	}
	if session.Established {
		session.State = "established"
	} else {
		session.State = "unknown"
	}
	return session
}

// BGPSessionFromLine extracts a session from the free-text print format:
// "0 E name=GMIX-1 remote.address=10.98.80.44 remote.as=138089 ...".
// The leading single character after the index encodes the session state.
func BGPSessionFromLine(line string) (BGPSession, error) {
	flags, kv := SplitLine(line)
	if len(kv) == 0 {
		return BGPSession{}, &routeros.ParseError{What: "bgp session", Input: line}
	}

	state := "unknown"
	for _, flag := range flags {
		if len(flag) == 1 && !isDigit(flag) {
			state = StateFromLetter(flag)
			break
		}
	}

	return BGPSession{
		Name:          kv["name"],
		State:         state,
		Established:   state == "established",
		RemoteAddress: stripPrefixLen(kv["remote.address"]),
		RemoteAS:      Int(kv["remote.as"]),
		RemoteID:      kv["remote.id"],
		LocalAddress:  stripPrefixLen(kv["local.address"]),
		LocalAS:       Int(kv["local.as"]),
		Uptime:        kv["uptime"],
		UptimeMS:      DurationMS(kv["uptime"]),
		PrefixCount:   Int(kv["prefix-count"]),
	}, nil
}

// BGPAdvertisementFromRecord builds the canonical advertisement view from a
// structured record.
func BGPAdvertisementFromRecord(rec routeros.Record) BGPAdvertisement {
	return BGPAdvertisement{
		Peer:        rec["peer"],
		Prefix:      firstNonEmpty(rec["dst"], rec["prefix"]),
		Nexthop:     rec["nexthop"],
		Origin:      rec["origin"],
		ASPath:      rec["as-path"],
		Communities: rec["communities"],
	}
}

// BGPAdvertisementFromLine extracts an advertisement from its free-text form.
func BGPAdvertisementFromLine(line string) (BGPAdvertisement, error) {
	_, kv := SplitLine(line)
	if len(kv) == 0 {
		return BGPAdvertisement{}, &routeros.ParseError{What: "bgp advertisement", Input: line}
	}
	return BGPAdvertisementFromRecord(routeros.Record(kv)), nil
}

// stripPrefixLen drops a trailing /len from addresses some firmware appends.
func stripPrefixLen(address string) string {
	if i := strings.IndexByte(address, '/'); i >= 0 {
		return address[:i]
	}
	return address
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isDigit(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
