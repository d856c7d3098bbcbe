package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Domain prefixes for fingerprints.
// Version suffix enables future algorithm migration.
const (
	DomainIntent = "citycycle/intent/v1"
	DomainRow    = "citycycle/row/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// IntentID computes the audit identity of a write intent.
// Two intents queued with identical content in the same position of a cycle
// get the same ID, so a replayed cycle can be diffed against a recorded one.
func IntentID(collection, kind string, row, col int, values []Row, seq int) (string, error) {
	payload, err := MarshalRows(values)
	if err != nil {
		return "", fmt.Errorf("IntentID: %w", err)
	}

	var buf []byte
	buf = append(buf, collection...)
	buf = append(buf, 0x00)
	buf = append(buf, kind...)
	buf = append(buf, 0x00)
	buf = strconv.AppendInt(buf, int64(row), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(col), 10)
	buf = append(buf, 0x00)
	buf = strconv.AppendInt(buf, int64(seq), 10)
	buf = append(buf, 0x00)
	buf = append(buf, payload...)

	return hashWithDomain(DomainIntent, buf), nil
}

// RowFingerprint computes a stable content hash for a single row.
func RowFingerprint(row Row) (string, error) {
	data, err := MarshalRow(row)
	if err != nil {
		return "", fmt.Errorf("RowFingerprint: %w", err)
	}
	return hashWithDomain(DomainRow, data), nil
}
