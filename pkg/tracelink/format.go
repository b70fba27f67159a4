package tracelink

import (
	"fmt"
	"time"

	"github.com/wundergraph/cosmo/tracelink/pkg/link"
	"go.uber.org/zap"
)

// Formatter builds the title and the header fields of the debug log entry
// written for every completed operation.
type Formatter func(operationType string, op *link.Operation, elapsed time.Duration) (string, []zap.Field)

// FormatMessage is the default Formatter, e.g. "query GetUser (in 12 ms)".
func FormatMessage(operationType string, op *link.Operation, elapsed time.Duration) (string, []zap.Field) {
	title := fmt.Sprintf("%s %s (in %d ms)", operationType, op.OperationName, elapsed.Milliseconds())
	return title, []zap.Field{
		zap.String("operation_type", operationType),
		zap.String("operation_name", op.OperationName),
		zap.Duration("elapsed", elapsed),
	}
}
