package notification_handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/fatflowers/paysync/internal/platform/hitpay"
	"github.com/fatflowers/paysync/internal/platform/provider"
	"github.com/fatflowers/paysync/pkg/types"
)

const hitpaySignatureField = "hmac"

// parseHitPay reads a HitPay webhook. With a salt configured the hmac field
// must match.
func parseHitPay(salt string, body []byte) (*callback, error) {
	rec, err := decodeOne(types.PaymentProviderHitPay, body)
	if err != nil {
		return nil, err
	}
	if salt != "" {
		if err := verifyHitPaySignature(salt, rec); err != nil {
			return nil, err
		}
	}
	return &callback{
		billID:     rec.String("payment_request_id"),
		orderRef:   rec.String("reference_number"),
		statusCode: hitpay.StatusCode(rec.String("status")),
		data:       rec,
	}, nil
}

// HitPaySignature is the hex HMAC-SHA256, keyed by salt, of every field
// except hmac, concatenated as key+value in key order.
func HitPaySignature(salt string, rec provider.Record) string {
	keys := make([]string, 0, len(rec))
	for k := range rec {
		if k != hitpaySignatureField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(rec.String(k))
	}
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

func verifyHitPaySignature(salt string, rec provider.Record) error {
	got := strings.ToLower(rec.String(hitpaySignatureField))
	if got == "" {
		return fmt.Errorf("%w: missing hmac", ErrInvalidSignature)
	}
	if !hmac.Equal([]byte(got), []byte(HitPaySignature(salt, rec))) {
		return fmt.Errorf("%w: hmac mismatch", ErrInvalidSignature)
	}
	return nil
}
