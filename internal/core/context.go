package core

import "context"

type contextKey string

const (
	ctxKeyOperator  contextKey = "import_operator"
	ctxKeyIPAddress contextKey = "import_ip"
)

// ContextWithOperator adds the importing operator to context.
func ContextWithOperator(ctx context.Context, op Operator) context.Context {
	return context.WithValue(ctx, ctxKeyOperator, op)
}

// OperatorFromContext extracts the operator from context.
// Returns false if none was set.
func OperatorFromContext(ctx context.Context) (Operator, bool) {
	op, ok := ctx.Value(ctxKeyOperator).(Operator)
	return op, ok
}

// ContextWithIPAddress adds the client IP address to context. Job creation
// records it on the job.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// GetIPAddressFromContext extracts IP address from context.
func GetIPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}
