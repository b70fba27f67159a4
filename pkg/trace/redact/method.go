package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

type Method string

const (
	// MethodHash replaces a value by its hex encoded SHA-256 digest, so equal
	// values can still be correlated.
	MethodHash   Method = "hash"
	MethodRedact Method = "redact"

	Redacted = "[REDACTED]"
)

// FuncFor returns the RedactFunc of method. The empty method redacts.
func FuncFor(method Method) (RedactFunc, error) {
	switch method {
	case MethodHash:
		return func(kv attribute.KeyValue) string {
			sum := sha256.Sum256([]byte(kv.Value.Emit()))
			return hex.EncodeToString(sum[:])
		}, nil
	case MethodRedact, "":
		return func(attribute.KeyValue) string {
			return Redacted
		}, nil
	default:
		return nil, fmt.Errorf("unknown redact method: %s", method)
	}
}
