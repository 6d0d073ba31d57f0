package marketingvalidator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	common "github.com/ajayykmr/shortcode-marketing-go/internal/adapters/common"
	"github.com/ajayykmr/shortcode-marketing-go/internal/config"
	"github.com/ajayykmr/shortcode-marketing-go/internal/models"
	"github.com/ajayykmr/shortcode-marketing-go/internal/util"
)

// Validator implements worker.Validator for marketing SMS requests. It parses
// JSON payloads, normalizes addressing fields and returns a populated
// ValidatedMessage.
type Validator struct {
	logger zerolog.Logger
	cfg    config.ValidationConfig
}

// New constructs a Validator using the supplied validation configuration.
func New(cfg config.ValidationConfig, logger zerolog.Logger) *Validator {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Validator{
		logger: logger,
		cfg:    cfg,
	}
}

// ParseAndValidate implements worker.Validator. On failure it still returns
// whatever envelope fields could be decoded so status and DLQ events can
// reference the request.
func (v *Validator) ParseAndValidate(ctx context.Context, channel string, payload []byte) (*common.ValidatedMessage, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, errors.New("marketing validator: payload is empty")
	}

	var req models.MarketingRequest
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("marketing validator: decode: %w", err)
	}

	if err := v.applyDefaultsAndValidate(channel, &req); err != nil {
		v.logger.Debug().
			Str("message_id", req.MessageID).
			Err(err).
			Msg("marketing validator: rejected request")
		return &common.ValidatedMessage{
			MessageID: strings.TrimSpace(req.MessageID),
			TraceID:   strings.TrimSpace(req.TraceID),
			TenantID:  strings.TrimSpace(req.TenantID),
		}, err
	}

	validated := &common.ValidatedMessage{
		Channel:    req.Channel,
		MessageID:  req.MessageID,
		TraceID:    req.TraceID,
		TenantID:   req.TenantID,
		CreatedAt:  req.CreatedAt,
		Metadata:   req.Meta,
		Request:    &req,
		RawPayload: bytes.Clone(payload),
	}

	return validated, nil
}

func (v *Validator) applyDefaultsAndValidate(channel string, req *models.MarketingRequest) error {
	req.Channel = strings.TrimSpace(strings.ToLower(req.Channel))
	if req.Channel == "" {
		req.Channel = channel
	}
	if channel != "" && req.Channel != strings.ToLower(channel) {
		return fmt.Errorf("marketing validator: channel mismatch: expected %s, got %s", channel, req.Channel)
	}

	if _, err := util.ParseUUIDv4(req.MessageID); err != nil {
		return fmt.Errorf("marketing validator: message_id: %w", err)
	}

	req.MessageID = strings.TrimSpace(req.MessageID)
	req.TraceID = strings.TrimSpace(req.TraceID)
	req.TenantID = strings.TrimSpace(req.TenantID)

	if req.CreatedAt.IsZero() {
		return errors.New("marketing validator: created_at is required")
	}
	req.CreatedAt = req.CreatedAt.UTC()

	from, err := util.NormalizeShortCode(req.From)
	if err != nil {
		return fmt.Errorf("marketing validator: from: %w", err)
	}
	req.From = from

	keyword, err := util.NormalizeKeyword(req.Keyword, v.cfg.KeywordMaxLen)
	if err != nil {
		return fmt.Errorf("marketing validator: keyword: %w", err)
	}
	req.Keyword = keyword

	to, err := util.NormalizeMSISDN(req.To)
	if err != nil {
		return fmt.Errorf("marketing validator: to: %w", err)
	}
	req.To = to

	if strings.TrimSpace(req.Text) == "" {
		return errors.New("marketing validator: text cannot be blank")
	}
	if err := util.EnsureMaxBytes("text", req.Text, v.cfg.TextMaxBytes); err != nil {
		return fmt.Errorf("marketing validator: %w", err)
	}

	meta, err := util.ValidateMetadata(req.Meta, v.cfg.MetaMaxEntries, v.cfg.MetaMaxKeyLen, v.cfg.MetaMaxValueLen)
	if err != nil {
		return fmt.Errorf("marketing validator: metadata: %w", err)
	}
	req.Meta = meta

	return nil
}
