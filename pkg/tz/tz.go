// Package tz resolves the timezone abbreviations users may pick with the
// /timezone command and keeps each user's choice in storage.
package tz

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// locations maps supported abbreviations to IANA zone names.
var locations = map[string]string{
	// North America
	"EST": "America/New_York",
	"CST": "America/Chicago",
	"MST": "America/Denver",
	"PST": "America/Los_Angeles",
	"AST": "America/Halifax",
	"HST": "Pacific/Honolulu",

	// Europe
	"GMT": "GMT",
	"UTC": "UTC",
	"CET": "Europe/Paris",
	"EET": "Europe/Athens",
	"BST": "Europe/London",

	// Asia
	"JST":       "Asia/Tokyo",
	"KST":       "Asia/Seoul",
	"IST":       "Asia/Kolkata",
	"CST_CHINA": "Asia/Shanghai",

	// Australia
	"AEST": "Australia/Sydney",
	"AWST": "Australia/Perth",
	"ACST": "Australia/Adelaide",
}

// Location resolves an abbreviation to a time.Location. Unknown or empty
// abbreviations fall back to the system-local zone rather than failing, so
// a stale preference can never break a status display.
func Location(abbr string) *time.Location {
	name, ok := locations[strings.ToUpper(strings.TrimSpace(abbr))]
	if !ok {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// Valid reports whether the abbreviation is one we support.
func Valid(abbr string) bool {
	_, ok := locations[strings.ToUpper(strings.TrimSpace(abbr))]
	return ok
}

// Supported returns all supported abbreviations, sorted.
func Supported() []string {
	out := make([]string, 0, len(locations))
	for abbr := range locations {
		out = append(out, abbr)
	}
	sort.Strings(out)
	return out
}

// NowIn returns the current time projected into the abbreviation's zone.
func NowIn(abbr string) time.Time {
	return time.Now().In(Location(abbr))
}

// Display formats an abbreviation with its zone and current time there,
// e.g. "EST (America/New_York - Current: 14:05)".
func Display(abbr string) string {
	if !Valid(abbr) {
		return "Server Default"
	}
	abbr = strings.ToUpper(strings.TrimSpace(abbr))
	now := NowIn(abbr)
	return fmt.Sprintf("%s (%s - Current: %02d:%02d)", abbr, locations[abbr], now.Hour(), now.Minute())
}
