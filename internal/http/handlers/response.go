// Package handlers provides HTTP handler implementations for the public API
// and the messaging-provider webhook.
//
// This file defines the standard response utilities used across all
// endpoints: structured error envelopes, consistent JSON serialization, and
// the TwiML writer for webhook replies.
//
// Conventions:
//   - All JSON error responses return an ErrorResponse with a stable `code`.
//   - `fail()` centralizes error logging and formatting, ensuring 5xx
//     responses are logged with request context for observability.
//   - The webhook never returns JSON errors to the provider: it answers with
//     TwiML (possibly empty) so the provider does not retry forever.
package handlers

import (
	"encoding/xml"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/treehouse/go-batch-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all JSON
// endpoints.
//
// Fields:
//   - RequestID: correlation ID echoed from X-Request-ID, used to correlate
//     server logs with client-side errors.
//   - Code: a stable, machine-readable string (see errors.go constants).
//   - Message: a human-readable error description, safe for display.
type ErrorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// fail aborts the request with a structured error and logs server-side
// errors with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	reqID := c.Writer.Header().Get("X-Request-ID")
	resp := ErrorResponse{
		RequestID: reqID,
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(); external packages (router setup)
// call it to return consistent error envelopes.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// twimlResponse is the reply document the messaging provider expects.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// twiml writes a webhook reply. An empty body produces an empty <Response/>,
// which tells the provider to send nothing back to the customer.
func twiml(c *gin.Context, body string) {
	out, err := xml.Marshal(twimlResponse{Message: body})
	if err != nil {
		// Marshalling a two-field struct cannot realistically fail; keep the
		// provider happy regardless.
		out = []byte("<Response></Response>")
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", append([]byte(xml.Header), out...))
}
