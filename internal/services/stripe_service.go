package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"prontoBack/internal/models"
)

type StripeConfig struct {
	// WebhookSecret is the endpoint signing secret (whsec_...).
	WebhookSecret string

	// Tolerance bounds how old a signed timestamp may be before the
	// signature is rejected. Guards against replay of captured deliveries.
	Tolerance time.Duration

	Logger *slog.Logger
}

// StripeService verifies webhook signatures and decodes events. Verification
// fails closed: any missing, malformed or stale input yields false.
type StripeService struct {
	secret    string
	tolerance time.Duration
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewStripeService(cfg StripeConfig) (*StripeService, error) {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, fmt.Errorf("stripe: webhook secret is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tolerance := cfg.Tolerance
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &StripeService{
		secret:    cfg.WebhookSecret,
		tolerance: tolerance,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// VerifySignature checks a Stripe-Signature header of the form
// "t=<unix>,v1=<hex>" against HMAC-SHA256 of "<t>.<payload>".
func (s *StripeService) VerifySignature(payload []byte, header string) bool {
	ts, sigs, err := parseSignatureHeader(header)
	if err != nil {
		s.logger.Warn("stripe: rejecting webhook", "reason", err.Error())
		return false
	}

	age := s.now().Sub(time.Unix(ts, 0))
	if age > s.tolerance || age < -s.tolerance {
		s.logger.Warn("stripe: rejecting webhook", "reason", "timestamp outside tolerance")
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range sigs {
		sigBytes, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(expected, sigBytes) {
			return true
		}
	}
	s.logger.Warn("stripe: rejecting webhook", "reason", "no matching v1 signature")
	return false
}

// ConstructEvent verifies the signature and decodes the payload into a typed
// event. The raw payload is retained for logging.
func (s *StripeService) ConstructEvent(payload []byte, header string) (models.WebhookEvent, error) {
	if !s.VerifySignature(payload, header) {
		return models.WebhookEvent{}, models.ErrInvalidSignature
	}
	var event models.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return models.WebhookEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return models.WebhookEvent{}, fmt.Errorf("event missing id or type")
	}
	event.Raw = payload
	return event, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, fmt.Errorf("missing signature header")
	}

	var ts int64 = -1
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			return 0, nil, fmt.Errorf("malformed signature header")
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("malformed timestamp")
			}
			ts = parsed
		case "v1":
			sigs = append(sigs, kv[1])
		}
	}
	if ts < 0 {
		return 0, nil, fmt.Errorf("signature header missing timestamp")
	}
	if len(sigs) == 0 {
		return 0, nil, fmt.Errorf("signature header missing v1 signature")
	}
	return ts, sigs, nil
}
