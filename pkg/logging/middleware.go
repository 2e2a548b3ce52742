package logging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
)

// ContextMiddleware logs every request handler invocation with its request
// ID, method and duration.
type ContextMiddleware struct {
	logger    Logger
	generator RequestIDGenerator
}

// NewContextMiddleware creates a new context middleware
func NewContextMiddleware(logger Logger) *ContextMiddleware {
	return &ContextMiddleware{logger: logger, generator: &UUIDGenerator{}}
}

// WithGenerator replaces the generator used for requests that arrive without an ID.
func (m *ContextMiddleware) WithGenerator(g RequestIDGenerator) *ContextMiddleware {
	m.generator = g
	return m
}

// WrapHandler wraps a request handler for method. Failures the peer caused
// (invalid params, unknown names) are logged at warn; everything else at error.
func (m *ContextMiddleware) WrapHandler(method string, handler func(context.Context, interface{}) (interface{}, error)) func(context.Context, interface{}) (interface{}, error) {
	return func(ctx context.Context, params interface{}) (interface{}, error) {
		requestID := RequestIDFromContext(ctx)
		if requestID == "" {
			requestID = m.generator.Generate()
			ctx = ContextWithRequestID(ctx, requestID)
		}

		logger := m.logger.WithFields(
			String("request_id", requestID),
			String("method", method),
		)
		logger.Debug("request started")

		start := time.Now()
		result, err := handler(ctx, params)
		duration := time.Since(start)

		if err != nil {
			l := logger.WithError(err).WithFields(Duration("duration", duration))
			if mcperrors.IsCode(err, mcperrors.CodeInvalidParams) {
				l.Warn("request rejected")
			} else {
				l.Error("request failed")
			}
			return result, err
		}

		logger.Debug("request completed", Duration("duration", duration))
		return result, nil
	}
}

// RequestIDGenerator generates unique request IDs
type RequestIDGenerator interface {
	Generate() string
}

// UUIDGenerator generates random UUIDv4 request IDs.
type UUIDGenerator struct{}

// Generate generates a new UUID
func (g *UUIDGenerator) Generate() string {
	return uuid.New().String()
}

// PrefixedGenerator prepends Prefix to IDs from Generator.
type PrefixedGenerator struct {
	Prefix    string
	Generator RequestIDGenerator
}

// Generate generates a new prefixed ID
func (g *PrefixedGenerator) Generate() string {
	return fmt.Sprintf("%s-%s", g.Prefix, g.Generator.Generate())
}
