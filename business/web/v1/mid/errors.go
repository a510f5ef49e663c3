package mid

import (
	"context"
	"net/http"

	v1 "github.com/hashrace/coordinator/business/web/v1"
	"github.com/hashrace/coordinator/foundation/web"
	"go.uber.org/zap"
)

// Errors handles errors coming out of the call chain. It detects normal
// application errors which are used to respond to the client in a uniform
// way. Unexpected errors (status >= 500) are logged.
func Errors(log *zap.SugaredLogger) web.Middleware {

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			// If the context is missing this value, request the service
			// to be shutdown gracefully.
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			// Run the next handler and catch any propagated error.
			if err := handler(ctx, w, r); err != nil {

				// Log the error.
				log.Errorw("ERROR", "traceid", v.TraceID, "message", err)

				// Build out the error response.
				var er v1.ErrorResponse
				var status int
				switch {
				case web.IsFieldErrors(err):
					status = http.StatusBadRequest
					er = v1.ErrorResponse{
						Error:  "data validation error",
						Fields: web.GetFieldErrors(err).Error(),
					}

				case v1.IsRequestError(err):
					reqErr := v1.GetRequestError(err)
					status = reqErr.Status
					er = v1.ErrorResponse{
						Error: reqErr.Error(),
					}

				default:
					status = http.StatusInternalServerError
					er = v1.ErrorResponse{
						Error: http.StatusText(http.StatusInternalServerError),
					}
				}

				// Respond with the error back to the client.
				if err := web.Respond(ctx, w, er, status); err != nil {
					return err
				}

				// If we receive the shutdown err we need to return it
				// back to the base handler to shut down the service.
				if web.IsShutdown(err) {
					return err
				}
			}

			// The error has been handled so we can stop propagating it.
			return nil
		}

		return h
	}

	return m
}
