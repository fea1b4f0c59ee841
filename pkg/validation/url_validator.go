package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/anime-shed/ingrediscan-go/internal/errors"
)

// URLValidator checks image_url values before any network access
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator creates a validator accepting any http(s) host
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedHosts:   []string{}, // empty means all hosts allowed
	}
}

// NewURLValidatorWithOptions creates a URL validator with custom options.
// A host entry starting with "." matches any subdomain.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateImageURL returns the parsed URL or an invalid_image error
func (v *URLValidator) ValidateImageURL(imageURL string) (*url.URL, error) {
	if strings.TrimSpace(imageURL) == "" {
		return nil, apperrors.NewInvalidImageError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil {
		return nil, apperrors.NewInvalidImageError("Invalid URL format", err)
	}

	if !v.isSchemeAllowed(parsedURL.Scheme) {
		return nil, apperrors.NewInvalidImageError("URL scheme not allowed", nil)
	}

	if parsedURL.Hostname() == "" {
		return nil, apperrors.NewInvalidImageError("URL must have a valid host", nil)
	}

	if !v.isHostAllowed(parsedURL.Hostname()) {
		return nil, apperrors.NewInvalidImageError("URL host not allowed", nil)
	}

	return parsedURL, nil
}

func (v *URLValidator) isSchemeAllowed(scheme string) bool {
	scheme = strings.ToLower(scheme)
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}

// isHostAllowed returns true if no host restrictions are set
func (v *URLValidator) isHostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range v.allowedHosts {
		if strings.HasPrefix(allowed, ".") {
			if strings.HasSuffix(host, allowed) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}
