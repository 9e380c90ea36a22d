package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"momentkey/internal/logging"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	return m
}

func TestSanitizer_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log, err := logging.New(&buf, logging.Options{Level: "debug"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("x", "moment_key", "deadbeef", "share_blob", "cafe", "moment_id", "abc")
	m := decodeLine(t, &buf)
	if m["moment_key"] != "[REDACTED]" || m["share_blob"] != "[REDACTED]" {
		t.Fatalf("secrets not redacted: %v", m)
	}
	if m["moment_id"] != "abc" {
		t.Fatalf("public id altered: %v", m)
	}
}

func TestSanitizer_FingerprintsTokenIDs(t *testing.T) {
	var buf bytes.Buffer
	log, _ := logging.New(&buf, logging.Options{})
	log.With("token_id", "00112233").Info("x")
	m := decodeLine(t, &buf)
	fp, ok := m["token_id_fp"].(string)
	if !ok || !strings.HasPrefix(fp, "fp_") {
		t.Fatalf("token id not fingerprinted: %v", m)
	}
	if _, leaked := m["token_id"]; leaked {
		t.Fatalf("raw token id logged")
	}
	if fp != logging.FingerprintID("00112233") {
		t.Fatalf("fingerprint not stable within process")
	}
}

func TestNew_RejectsUnknownOptions(t *testing.T) {
	if _, err := logging.New(&bytes.Buffer{}, logging.Options{Level: "loud"}); err == nil {
		t.Fatalf("want level error")
	}
	if _, err := logging.New(&bytes.Buffer{}, logging.Options{Format: "xml"}); err == nil {
		t.Fatalf("want format error")
	}
}
