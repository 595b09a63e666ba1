package graph

import (
	"context"

	gqlerrors "github.com/graph-gophers/graphql-go/errors"

	"github.com/threadsclone/backend/internal/errors"
	"github.com/threadsclone/backend/internal/logging"
)

const codeValidationFailed = "GRAPHQL_VALIDATION_FAILED"

// MaskErrors rewrites engine errors into their client form.
//
// Errors without a path come from parsing or validation and are returned
// as they are. Field errors keep their message only when they carry a
// classified ServiceError; anything else is logged and replaced with the
// generic internal error.
func MaskErrors(ctx context.Context, logger *logging.Logger, errs []*gqlerrors.QueryError) []*gqlerrors.QueryError {
	if len(errs) == 0 {
		return errs
	}
	out := make([]*gqlerrors.QueryError, 0, len(errs))
	for _, e := range errs {
		out = append(out, maskError(ctx, logger, e))
	}
	return out
}

func maskError(ctx context.Context, logger *logging.Logger, e *gqlerrors.QueryError) *gqlerrors.QueryError {
	if e == nil {
		return nil
	}

	cause := e.ResolverError
	if cause == nil {
		cause = e.Err
	}
	if se := errors.GetServiceError(cause); se != nil && se.Code != errors.CodeInternal {
		return &gqlerrors.QueryError{
			Message:    se.Message,
			Locations:  e.Locations,
			Path:       e.Path,
			Extensions: se.Extensions(),
		}
	}

	if len(e.Path) == 0 && cause == nil {
		masked := *e
		if masked.Extensions == nil {
			masked.Extensions = map[string]interface{}{"code": codeValidationFailed}
		}
		return &masked
	}

	entry := logger.WithContext(ctx).WithField("path", e.Path)
	if cause != nil {
		entry = entry.WithError(cause)
	}
	entry.Errorf("graphql error: %s", e.Message)

	return &gqlerrors.QueryError{
		Message:    errors.InternalMessage,
		Locations:  e.Locations,
		Path:       e.Path,
		Extensions: map[string]interface{}{"code": string(errors.CodeInternal)},
	}
}

// clientErrors builds a request-level error list, e.g. for a malformed body.
func clientErrors(message, code string) []*gqlerrors.QueryError {
	return []*gqlerrors.QueryError{{
		Message:    message,
		Extensions: map[string]interface{}{"code": code},
	}}
}
