package parse

import (
	"strings"

	"github.com/nettriq/rosfleet/internal/routeros"
)

// DeviceUser is one local account on a device (/user/print).
type DeviceUser struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Group        string `json:"group,omitempty"`
	Address      string `json:"address,omitempty"`
	Comment      string `json:"comment,omitempty"`
	Disabled     bool   `json:"disabled"`
	LastLoggedIn string `json:"last_logged_in,omitempty"`
}

// DeviceUserFromRecord builds the canonical user view from a structured
// record.
func DeviceUserFromRecord(rec routeros.Record) DeviceUser {
	return DeviceUser{
		ID:           rec[".id"],
		Name:         rec["name"],
		Group:        rec["group"],
		Address:      rec["address"],
		Comment:      rec["comment"],
		Disabled:     Bool(rec["disabled"]),
		LastLoggedIn: rec["last-logged-in"],
	}
}

// DeviceUserFromLine extracts a user from the free-text print format. A
// positional "X" flag marks a disabled account.
func DeviceUserFromLine(line string) (DeviceUser, error) {
	flags, kv := SplitLine(line)
	if len(kv) == 0 {
		return DeviceUser{}, &routeros.ParseError{What: "device user", Input: line}
	}
	user := DeviceUserFromRecord(routeros.Record(kv))
	for _, flag := range flags {
		if strings.EqualFold(flag, "X") {
			user.Disabled = true
		}
	}
	return user, nil
}
