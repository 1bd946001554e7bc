package session

import (
	"strings"

	"github.com/mssola/useragent"
)

// ParseUserAgent turns a raw User-Agent header into a short display name
// ("Chrome on Mac OS X", "Mobile Safari") recorded with the session. Claims
// support uses it to tell a user's devices apart.
func ParseUserAgent(raw string) string {
	if raw == "" {
		return "Unknown Device"
	}
	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	os := ua.OS()

	switch {
	case browser != "" && os != "":
		name := browser + " on " + os
		if ua.Mobile() {
			name = "Mobile " + name
		}
		return strings.Join(strings.Fields(name), " ")
	case browser != "":
		return browser
	case os != "":
		return os
	default:
		return "Unknown Device"
	}
}
