package link

import (
	"context"
	"sync"

	"github.com/wundergraph/graphql-go-tools/v2/pkg/ast"
	"github.com/wundergraph/graphql-go-tools/v2/pkg/astparser"
	"go.uber.org/zap/zapcore"
)

type OperationType string

const (
	OperationTypeQuery        OperationType = "query"
	OperationTypeMutation     OperationType = "mutation"
	OperationTypeSubscription OperationType = "subscription"
	// OperationTypeUnknown is returned when the first definition of the document
	// is not an operation or the document could not be parsed.
	OperationTypeUnknown OperationType = ""
)

// ResponseContextKey is the operation context key under which the terminating
// link stores the *http.Response of the operation.
const ResponseContextKey = "response"

// Request is the client side view of a GraphQL request.
type Request struct {
	Query         string
	OperationName string
	// Variables is the raw JSON object of the "variables" field
	Variables []byte
}

// Operation is one GraphQL request flowing through a chain of links.
// The operation context is shared by all copies made with WithContext.
type Operation struct {
	OperationName string
	Query         string
	Variables     []byte

	operationType OperationType
	ctx           context.Context
	values        *operationContext
}

type operationContext struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewOperation creates an operation from a request. The query document is
// parsed once to read the type of its first definition. When the request has
// no operation name, the name of the first operation definition is used.
func NewOperation(ctx context.Context, req Request) *Operation {
	if ctx == nil {
		ctx = context.Background()
	}

	op := &Operation{
		OperationName: req.OperationName,
		Query:         req.Query,
		Variables:     req.Variables,
		ctx:           ctx,
		values: &operationContext{
			values: make(map[string]any),
		},
	}

	opType, name := inspectDocument(req.Query)
	op.operationType = opType
	if op.OperationName == "" {
		op.OperationName = name
	}

	return op
}

// inspectDocument returns the type of the first definition and the name of the
// first operation definition of a GraphQL document.
func inspectDocument(query string) (OperationType, string) {
	if query == "" {
		return OperationTypeUnknown, ""
	}

	doc, report := astparser.ParseGraphqlDocumentString(query)
	if report.HasErrors() || len(doc.RootNodes) == 0 {
		return OperationTypeUnknown, ""
	}

	opType := OperationTypeUnknown
	if first := doc.RootNodes[0]; first.Kind == ast.NodeKindOperationDefinition {
		switch doc.OperationDefinitions[first.Ref].OperationType {
		case ast.OperationTypeQuery:
			opType = OperationTypeQuery
		case ast.OperationTypeMutation:
			opType = OperationTypeMutation
		case ast.OperationTypeSubscription:
			opType = OperationTypeSubscription
		}
	}

	for i := range doc.RootNodes {
		if doc.RootNodes[i].Kind == ast.NodeKindOperationDefinition {
			return opType, string(doc.OperationDefinitionNameBytes(doc.RootNodes[i].Ref))
		}
	}

	return opType, ""
}

// Type returns the declared type of the first definition of the query document.
func (o *Operation) Type() OperationType {
	return o.operationType
}

// Context returns the Go context the operation is executed with.
func (o *Operation) Context() context.Context {
	return o.ctx
}

// WithContext returns a shallow copy of the operation using ctx.
// The copy shares the operation context with the original.
func (o *Operation) WithContext(ctx context.Context) *Operation {
	if ctx == nil {
		panic("nil context")
	}
	o2 := new(Operation)
	*o2 = *o
	o2.ctx = ctx
	return o2
}

// SetContext stores a value in the operation context.
func (o *Operation) SetContext(key string, value any) {
	o.values.mu.Lock()
	defer o.values.mu.Unlock()
	o.values.values[key] = value
}

// ContextValue reads a value from the operation context.
func (o *Operation) ContextValue(key string) (any, bool) {
	o.values.mu.RLock()
	defer o.values.mu.RUnlock()
	v, ok := o.values.values[key]
	return v, ok
}

func (o *Operation) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", o.OperationName)
	enc.AddString("type", string(o.operationType))
	enc.AddString("query", o.Query)
	if len(o.Variables) > 0 {
		enc.AddByteString("variables", o.Variables)
	}
	return nil
}
