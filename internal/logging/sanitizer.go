package logging

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

var (
	bootNonce      = randomNonce()
	fingerprintIDs = map[string]struct{}{
		"token_id":    {},
		"participant": {},
		"device_id":   {},
		"requester":   {},
	}
	sensitiveKeyParts = []string{"secret", "key", "seed", "share", "gms", "passphrase", "pin", "plaintext"}
)

// SanitizingHandler redacts and fingerprints attributes before passing the
// record on.
type SanitizingHandler struct {
	next slog.Handler
}

// WrapHandler wraps next. A nil handler stays nil.
func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	out := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(SanitizeAttr(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, SanitizeAttr(a))
	}
	return &SanitizingHandler{next: h.next.WithAttrs(out)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr applies the redaction rules to one attribute, recursing into
// groups.
func SanitizeAttr(attr slog.Attr) slog.Attr {
	key := strings.TrimSpace(attr.Key)
	lower := strings.ToLower(key)
	if _, ok := fingerprintIDs[lower]; ok {
		return slog.String(key+"_fp", FingerprintID(valueString(attr.Value)))
	}
	if isSensitiveKey(lower) {
		return slog.String(key, redactedValue)
	}
	if attr.Value.Kind() == slog.KindGroup {
		group := attr.Value.Group()
		out := make([]any, 0, len(group))
		for _, a := range group {
			out = append(out, SanitizeAttr(a))
		}
		return slog.Group(key, out...)
	}
	return attr
}

// FingerprintID returns a per-process fingerprint of an identifier. The same
// value maps to the same fingerprint within one run only.
func FingerprintID(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v + "|" + bootNonce))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func isSensitiveKey(key string) bool {
	for _, part := range sensitiveKeyParts {
		if strings.Contains(key, part) {
			return true
		}
	}
	return false
}

func valueString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return fmt.Sprint(v.Any())
}

func randomNonce() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "fallback_nonce"
	}
	return hex.EncodeToString(buf)
}
