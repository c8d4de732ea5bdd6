package api

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/stefando/lfsS3/internal/auth"
)

// principalKey is the authorizer context entry holding the authenticated user
const principalKey = "principalId"

// LambdaHandler adapts API Gateway proxy events to h. The caller identity is
// taken from the REQUEST authorizer context.
func LambdaHandler(h http.Handler) func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		// Extract the principal from the REQUEST authorizer context
		if principal, ok := req.RequestContext.Authorizer[principalKey].(string); ok && principal != "" {
			ctx = auth.WithUsername(ctx, principal)
		} else {
			slog.WarnContext(ctx, "No principalId found in authorizer context", "authorizer", req.RequestContext.Authorizer)
		}

		// Create a new http.Request from the API Gateway event
		httpReq, err := createHTTPRequest(ctx, req)
		if err != nil {
			slog.ErrorContext(ctx, "Error creating HTTP request", "error", err)
			return events.APIGatewayProxyResponse{
				StatusCode: http.StatusInternalServerError,
				Body:       "Internal server error",
			}, nil
		}

		// Process the request through the router and capture the response
		rec := newResponseRecorder()
		h.ServeHTTP(rec, httpReq)

		return rec.proxyResponse(), nil
	}
}

// createHTTPRequest creates an http.Request from an API Gateway event
func createHTTPRequest(ctx context.Context, req events.APIGatewayProxyRequest) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if req.Body != "" {
		if req.IsBase64Encoded {
			decoded, err := base64.StdEncoding.DecodeString(req.Body)
			if err != nil {
				return nil, err
			}
			body = strings.NewReader(string(decoded))
		} else {
			body = strings.NewReader(req.Body)
		}
	}

	// Prefer the concrete path; fall back to the resource template with path
	// parameters substituted
	path := req.Path
	if path == "" {
		path = req.Resource
		for param, value := range req.PathParameters {
			path = strings.ReplaceAll(path, "{"+param+"}", value)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.HTTPMethod, path, body)
	if err != nil {
		return nil, err
	}

	// Add query parameters
	query := url.Values{}
	for param, values := range req.MultiValueQueryStringParameters {
		for _, value := range values {
			query.Add(param, value)
		}
	}
	for param, value := range req.QueryStringParameters {
		if !query.Has(param) {
			query.Set(param, value)
		}
	}
	httpReq.URL.RawQuery = query.Encode()

	// Add headers
	for key, values := range req.MultiValueHeaders {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	for key, value := range req.Headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}
	if ip := req.RequestContext.Identity.SourceIP; ip != "" {
		httpReq.RemoteAddr = ip
	}

	return httpReq, nil
}

// responseRecorder captures the router's response
type responseRecorder struct {
	header     http.Header
	body       strings.Builder
	statusCode int
	wroteHead  bool
}

// newResponseRecorder creates a new response recorder
func newResponseRecorder() *responseRecorder {
	return &responseRecorder{
		header:     make(http.Header),
		statusCode: http.StatusOK, // Default status
	}
}

// Header implements the http.ResponseWriter interface. The returned map is
// live so handlers can set headers before writing.
func (r *responseRecorder) Header() http.Header {
	return r.header
}

// Write implements the http.ResponseWriter interface
func (r *responseRecorder) Write(body []byte) (int, error) {
	r.wroteHead = true
	return r.body.Write(body)
}

// WriteHeader implements the http.ResponseWriter interface
func (r *responseRecorder) WriteHeader(statusCode int) {
	if r.wroteHead {
		return
	}
	r.wroteHead = true
	r.statusCode = statusCode
}

// proxyResponse converts the captured response to an API Gateway response
func (r *responseRecorder) proxyResponse() events.APIGatewayProxyResponse {
	headers := make(map[string]string, len(r.header))
	for key := range r.header {
		headers[key] = r.header.Get(key)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: r.statusCode,
		Headers:    headers,
		Body:       r.body.String(),
	}
}
