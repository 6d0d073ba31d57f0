package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrInvalidUUID is returned when a value is not a UUID v4.
	ErrInvalidUUID = errors.New("invalid uuid v4")
	// ErrInvalidShortCode is returned when a sender is not a numeric short code.
	ErrInvalidShortCode = errors.New("invalid short code")
	// ErrInvalidMSISDN is returned when a recipient is not an international number.
	ErrInvalidMSISDN = errors.New("invalid msisdn")
	// ErrInvalidKeyword is returned when a short-code keyword is malformed.
	ErrInvalidKeyword = errors.New("invalid keyword")
)

var (
	shortCodePattern = regexp.MustCompile(`^[0-9]{3,8}$`)
	msisdnPattern    = regexp.MustCompile(`^[1-9][0-9]{6,14}$`)
	keywordPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// ParseUUIDv4 parses and validates a UUID string, ensuring it is version 4.
func ParseUUIDv4(value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.UUID{}, fmt.Errorf("%w: value is empty", ErrInvalidUUID)
	}

	u, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w: %v", ErrInvalidUUID, err)
	}
	if u.Version() != 4 {
		return uuid.UUID{}, fmt.Errorf("%w: expected version 4", ErrInvalidUUID)
	}
	return u, nil
}

// NormalizeShortCode validates a shared short code, which is a short run of
// digits.
func NormalizeShortCode(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidShortCode)
	}
	if !shortCodePattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidShortCode, trimmed)
	}
	return trimmed, nil
}

// NormalizeMSISDN converts a mobile number in international format to the
// bare digits the provider expects: a leading "+" or "00" is dropped, so
// "+447525856424" and "00447525856424" both become "447525856424".
func NormalizeMSISDN(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidMSISDN)
	}

	digits := strings.TrimPrefix(trimmed, "+")
	if digits == trimmed {
		digits = strings.TrimPrefix(trimmed, "00")
	}
	if !msisdnPattern.MatchString(digits) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMSISDN, trimmed)
	}
	return digits, nil
}

// NormalizeKeyword validates the keyword chosen during short-code sign up.
// Keywords are a single token of letters, digits, underscores or dashes.
func NormalizeKeyword(value string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: value is empty", ErrInvalidKeyword)
	}
	if !keywordPattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKeyword, trimmed)
	}
	if maxLen > 0 && len(trimmed) > maxLen {
		return "", fmt.Errorf("%w: exceeds maximum length of %d", ErrInvalidKeyword, maxLen)
	}
	return trimmed, nil
}

// ValidateMetadata enforces constraints on metadata maps and returns a copy
// containing trimmed keys and values.
func ValidateMetadata(meta map[string]string, maxEntries, maxKeyLen, maxValueLen int) (map[string]string, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	if maxEntries > 0 && len(meta) > maxEntries {
		return nil, fmt.Errorf("metadata entries exceeded: got %d, max %d", len(meta), maxEntries)
	}

	out := make(map[string]string, len(meta))
	for rawKey, rawValue := range meta {
		key := strings.TrimSpace(rawKey)
		value := strings.TrimSpace(rawValue)

		if key == "" {
			return nil, errors.New("metadata key cannot be empty")
		}
		if maxKeyLen > 0 && utf8.RuneCountInString(key) > maxKeyLen {
			return nil, fmt.Errorf("metadata key %q exceeds max length %d", key, maxKeyLen)
		}
		if maxValueLen > 0 && utf8.RuneCountInString(value) > maxValueLen {
			return nil, fmt.Errorf("metadata value for %q exceeds max length %d", key, maxValueLen)
		}
		out[key] = value
	}
	return out, nil
}

// EnsureMaxBytes checks that a string does not exceed max bytes.
func EnsureMaxBytes(field, value string, max int) error {
	if max <= 0 {
		return nil
	}
	if len(value) > max {
		return fmt.Errorf("%s exceeds maximum size of %d bytes", field, max)
	}
	return nil
}
