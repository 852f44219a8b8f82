package sanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

var (
	// StrictPolicy removes all HTML tags and attributes.
	StrictPolicy = bluemonday.StrictPolicy()

	// PopupPolicy permits the markup a geocoder popup label is built from:
	// line breaks, emphasis and class-annotated spans.
	PopupPolicy = newPopupPolicy()
)

func newPopupPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("br", "b", "strong", "em", "i")
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("span")
	return p
}

// Text strips all HTML tags and escapes the remainder.
// Use for: provider display names, entity labels, address parts.
func Text(input string) string {
	return StrictPolicy.Sanitize(input)
}

// Popup sanitizes a marker popup label.
// Removes: <script>, <a>, <img>, event handlers, style attributes.
func Popup(input string) string {
	return PopupPolicy.Sanitize(input)
}
