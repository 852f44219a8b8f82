package geocoding

import (
	"strings"

	"github.com/Togather-Foundation/geowidget/internal/sanitize"
)

const (
	detailClass  = "geocoder-address-detail"
	contextClass = "geocoder-address-context"
)

// addressHTML renders an address as up to three popup lines: street,
// postcode with locality, region with country. Returns "" when the address
// carries none of them.
func addressHTML(address map[string]string) string {
	if len(address) == 0 {
		return ""
	}

	var lines []string
	appendLine := func(class, text string) {
		if text == "" {
			return
		}
		if len(lines) > 0 {
			text = `<span class="` + class + `">` + text + `</span>`
		}
		lines = append(lines, text)
	}

	if hasAny(address, "road", "building") {
		appendLine("", joinParts(address, "building", "road", "house_number"))
	}
	if hasAny(address, "city", "town", "village", "hamlet") {
		appendLine(detailClass, joinParts(address, "postcode", "city", "town", "village", "hamlet"))
	}
	if hasAny(address, "state", "country") {
		appendLine(contextClass, joinParts(address, "state", "country"))
	}

	return sanitize.Popup(strings.Join(lines, "<br>"))
}

func hasAny(address map[string]string, keys ...string) bool {
	for _, k := range keys {
		if address[k] != "" {
			return true
		}
	}
	return false
}

func joinParts(address map[string]string, keys ...string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if v := strings.TrimSpace(address[k]); v != "" {
			parts = append(parts, sanitize.Text(v))
		}
	}
	return strings.Join(parts, " ")
}
