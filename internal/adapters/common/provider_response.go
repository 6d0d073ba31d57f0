package common

import (
	"unicode/utf8"

	"github.com/ajayykmr/shortcode-marketing-go/internal/models"
)

// DefaultRawBodyLimit is the number of characters of the provider reply kept
// on a ProviderResponse.
const DefaultRawBodyLimit = 1024

// ProviderResponse is the normalized provider outcome returned by adapters.
type ProviderResponse struct {
	Status  string            `json:"status"`
	Code    *int              `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Raw     string            `json:"raw,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// Model converts the response into its wire representation.
func (r *ProviderResponse) Model() *models.ProviderResponse {
	if r == nil {
		return nil
	}
	return &models.ProviderResponse{
		Status:  r.Status,
		Code:    r.Code,
		Message: r.Message,
		Raw:     r.Raw,
		Meta:    r.Meta,
	}
}

// TruncateRaw trims raw to at most limit runes. A non-positive limit yields
// an empty string.
func TruncateRaw(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
