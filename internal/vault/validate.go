package vault

import (
	"unicode/utf8"

	"github.com/lexvault/lexvault/internal/protocol"
	"github.com/lexvault/lexvault/internal/store"
	apperrors "github.com/lexvault/lexvault/pkg/errors"
)

const (
	defaultMaxNameChars = 512
	defaultMaxTextBytes = 1 << 20

	maxMetaKeyChars   = 128
	maxMetaValueBytes = 4096
)

func (s *Service) maxNameChars() int {
	if s.cfg.MaxNameChars > 0 {
		return s.cfg.MaxNameChars
	}
	return defaultMaxNameChars
}

func (s *Service) maxTextBytes() int {
	if s.cfg.MaxTextBytes > 0 {
		return s.cfg.MaxTextBytes
	}
	return defaultMaxTextBytes
}

// validateIngest enforces the ingest limits. Empty text is allowed: it
// stores a document that reconstructs to an empty string.
func (s *Service) validateIngest(req protocol.IngestRequest) error {
	if req.Name == "" {
		return apperrors.Formatf("name is required")
	}
	if n := utf8.RuneCountInString(req.Name); n > s.maxNameChars() {
		return apperrors.Formatf("name of %d characters exceeds limit %d", n, s.maxNameChars())
	}
	if !store.ValidCentury(req.Century) {
		return apperrors.Formatf("century-code %q: 1-32 characters of [A-Za-z0-9_-] required", req.Century)
	}
	if len(req.Text) > s.maxTextBytes() {
		return errTextTooLarge(len(req.Text), s.maxTextBytes())
	}
	return nil
}

func errTextTooLarge(got, limit int) error {
	return apperrors.Formatf("text of %d bytes exceeds limit %d", got, limit)
}

func validateMetaFields(set map[string]string, remove []string) error {
	for k, v := range set {
		if k == "" {
			return apperrors.Formatf("metadata key must not be empty")
		}
		if n := utf8.RuneCountInString(k); n > maxMetaKeyChars {
			return apperrors.Formatf("metadata key %q: %d characters exceeds limit %d", k, n, maxMetaKeyChars)
		}
		if len(v) > maxMetaValueBytes {
			return apperrors.Formatf("metadata value for %q: %d bytes exceeds limit %d", k, len(v), maxMetaValueBytes)
		}
	}
	for _, k := range remove {
		if k == "" {
			return apperrors.Formatf("metadata key must not be empty")
		}
	}
	return nil
}

func validateBondToken(surface string) error {
	if surface == "" {
		return apperrors.Formatf("token is required")
	}
	return nil
}
