package middleware

import (
	"fmt"
	"net/http"

	"github.com/getsentry/sentry-go"
)

// SentryMiddleware runs each request in its own hub and transaction, named
// after the method and path. It is a pass-through when Sentry is not set up.
func SentryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub := sentry.GetHubFromContext(r.Context())
		if hub == nil {
			hub = sentry.CurrentHub().Clone()
		}

		txn := sentry.StartTransaction(r.Context(), r.Method+" "+r.URL.Path,
			sentry.WithOpName("http.server"),
			sentry.WithTransactionSource(sentry.SourceURL),
			sentry.ContinueFromRequest(r),
		)
		defer txn.Finish()

		r = r.WithContext(sentry.SetHubOnContext(txn.Context(), hub))

		scope := hub.Scope()
		scope.SetRequest(r)
		if id := GetRequestID(r.Context()); id != "" {
			scope.SetTag("request_id", id)
			txn.SetTag("request_id", id)
		}

		defer func() {
			if err := recover(); err != nil {
				txn.Status = sentry.SpanStatusInternalError
				hub.RecoverWithContext(r.Context(), err)
				panic(err)
			}
		}()

		rec := newResponseRecorder(w)
		next.ServeHTTP(rec, r)

		txn.Status = sentry.HTTPtoSpanStatus(rec.status)
		txn.SetData("http.response.status_code", rec.status)

		// the handler already captured the error itself
		if rec.status >= http.StatusInternalServerError {
			hub.CaptureMessage(fmt.Sprintf("HTTP %d on %s %s", rec.status, r.Method, r.URL.Path))
		}
	})
}
