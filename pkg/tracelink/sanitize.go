package tracelink

import "strings"

const (
	// MaxTraceNameLength is the longest trace name accepted by the backend.
	MaxTraceNameLength = 32
	unknownTraceName   = "unknown"
)

// SanitizeTraceName turns an operation name into a trace name: at most
// MaxTraceNameLength characters, no surrounding whitespace and no leading or
// trailing underscore. Names that end up empty become "unknown".
func SanitizeTraceName(name string) string {
	name = strings.TrimSpace(name)

	if r := []rune(name); len(r) > MaxTraceNameLength {
		name = string(r[:MaxTraceNameLength])
	} else if len(r) == 0 {
		name = unknownTraceName
	}

	if strings.HasPrefix(name, "_") {
		name = strings.TrimSpace(name[1:])
		if name == "" {
			name = unknownTraceName
		}
	}

	if strings.HasSuffix(name, "_") {
		name = strings.TrimSpace(name[:len(name)-1])
		if name == "" || name == "_" {
			name = unknownTraceName
		}
	}

	return name
}
