package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// URLValidationError represents a URL validation failure
type URLValidationError struct {
	Field   string
	Message string
	URL     string
}

func (e URLValidationError) Error() string {
	return fmt.Sprintf("%s: %s (url: %s)", e.Field, e.Message, e.URL)
}

// TilePlaceholders must all appear in a tile server URL template.
var TilePlaceholders = []string{"{z}", "{x}", "{y}"}

// ValidateURL validates that a URL is well-formed http(s) and optionally requires HTTPS
func ValidateURL(urlString, fieldName string, requireHTTPS bool) error {
	if urlString == "" {
		return nil // Empty URLs are allowed unless field is required
	}

	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return URLValidationError{Field: fieldName, Message: "invalid URL format", URL: urlString}
	}

	if parsedURL.Scheme == "" {
		return URLValidationError{Field: fieldName, Message: "URL must include a scheme (http:// or https://)", URL: urlString}
	}

	if parsedURL.Host == "" {
		return URLValidationError{Field: fieldName, Message: "URL must include a host", URL: urlString}
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if requireHTTPS && scheme != "https" {
		return URLValidationError{Field: fieldName, Message: "URL must use HTTPS", URL: urlString}
	}

	if scheme != "http" && scheme != "https" {
		return URLValidationError{Field: fieldName, Message: "URL scheme must be http or https", URL: urlString}
	}

	return nil
}

// ValidateServiceURL validates a geocoding service endpoint. A path is
// allowed (self-hosted instances often live under one) but query parameters
// and fragments are not, since requests append their own.
func ValidateServiceURL(urlString, fieldName string) error {
	if err := ValidateURL(urlString, fieldName, false); err != nil {
		return err
	}
	if urlString == "" {
		return nil
	}

	parsedURL, _ := url.Parse(urlString) // Already validated above

	if parsedURL.RawQuery != "" {
		return URLValidationError{Field: fieldName, Message: "service URL must not contain query parameters", URL: urlString}
	}

	if parsedURL.Fragment != "" {
		return URLValidationError{Field: fieldName, Message: "service URL must not contain a fragment", URL: urlString}
	}

	return nil
}

// ValidateTileURL validates a slippy-map tile URL template such as
// "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png".
func ValidateTileURL(template, fieldName string) error {
	if template == "" {
		return nil
	}

	for _, p := range TilePlaceholders {
		if !strings.Contains(template, p) {
			return URLValidationError{Field: fieldName, Message: "tile URL must contain " + p, URL: template}
		}
	}

	// Placeholders are not valid in a host name; substitute before parsing.
	concrete := strings.NewReplacer("{s}", "a", "{z}", "0", "{x}", "0", "{y}", "0", "{r}", "").Replace(template)
	if err := ValidateURL(concrete, fieldName, false); err != nil {
		return URLValidationError{Field: fieldName, Message: err.(URLValidationError).Message, URL: template}
	}

	return nil
}
