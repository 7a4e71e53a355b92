package helpers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kathaghar/api/internal/database"
	"github.com/kathaghar/api/internal/middleware"
	"github.com/kathaghar/api/internal/model"
	"github.com/kathaghar/api/pkg/jwt"
)

// TestIssuer is the issuer of every token NewTestSigner signs.
const TestIssuer = "kathaghar-test"

// ============================================================================
// Token Helpers
// ============================================================================

// NewTestSigner returns a token service backed by a fresh in-memory key.
func NewTestSigner(t *testing.T, expiration time.Duration) *jwt.Service {
	t.Helper()

	// 1024 bits keeps key generation fast; tests never need real strength.
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err, "helpers: generating RSA key")

	return jwt.NewServiceWithKey(key, TestIssuer, expiration)
}

// SignSession signs a token carrying identity, valid for the signer's
// default lifetime.
func SignSession(t *testing.T, signer *jwt.Service, identity *model.Identity) string {
	t.Helper()

	claims := jwt.Claims{
		Subject: identity.ID,
		UserID:  identity.ID,
		Email:   identity.Email,
		Name:    identity.Name,
	}
	if identity.Institution != nil {
		claims.Institution = *identity.Institution
	}

	token, err := signer.Sign(claims)
	require.NoError(t, err, "helpers: signing token")
	return token
}

// SignExpired signs a token for identity that expired an hour ago.
func SignExpired(t *testing.T, signer *jwt.Service, identity *model.Identity) string {
	t.Helper()

	token, err := signer.Sign(jwt.Claims{
		Subject:   identity.ID,
		UserID:    identity.ID,
		ExpiresAt: time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err, "helpers: signing expired token")
	return token
}

// ============================================================================
// HTTP Request Helpers
// ============================================================================

// RequestBuilder helps construct HTTP requests for testing
type RequestBuilder struct {
	t       *testing.T
	method  string
	path    string
	body    interface{}
	raw     io.Reader
	headers map[string]string
	cookies []*http.Cookie
}

// NewRequest creates a new request builder
func NewRequest(t *testing.T, method, path string) *RequestBuilder {
	t.Helper()
	return &RequestBuilder{
		t:       t,
		method:  method,
		path:    path,
		headers: make(map[string]string),
	}
}

// WithBody sets the request body (will be JSON encoded)
func (rb *RequestBuilder) WithBody(body interface{}) *RequestBuilder {
	rb.body = body
	return rb
}

// WithRawBody sets the request body verbatim.
func (rb *RequestBuilder) WithRawBody(body string) *RequestBuilder {
	rb.raw = bytes.NewBufferString(body)
	return rb
}

// WithHeader adds a header to the request
func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.headers[key] = value
	return rb
}

// WithBearer authenticates the request with a token header.
func (rb *RequestBuilder) WithBearer(token string) *RequestBuilder {
	return rb.WithHeader("Authorization", "Bearer "+token)
}

// WithSessionCookie authenticates the request the way a browser does.
func (rb *RequestBuilder) WithSessionCookie(token string) *RequestBuilder {
	rb.cookies = append(rb.cookies, &http.Cookie{Name: middleware.CookieName, Value: token})
	return rb
}

// Build creates the HTTP request
func (rb *RequestBuilder) Build() *http.Request {
	rb.t.Helper()

	bodyReader := rb.raw
	if rb.body != nil {
		bodyBytes, err := json.Marshal(rb.body)
		require.NoError(rb.t, err, "helpers: marshalling body")
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(rb.method, rb.path, bodyReader)
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range rb.headers {
		req.Header.Set(k, v)
	}
	for _, c := range rb.cookies {
		req.AddCookie(c)
	}
	return req
}

// Do builds the request and serves it with h.
func (rb *RequestBuilder) Do(h http.Handler) *httptest.ResponseRecorder {
	rb.t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, rb.Build())
	return rr
}

// ============================================================================
// Response Assertion Helpers
// ============================================================================

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.Code, "unexpected status; body: %s", resp.Body.String())
}

// AssertProblem validates an RFC 9457 problem response. A zero code skips
// the code check.
func AssertProblem(t *testing.T, resp *httptest.ResponseRecorder, status int, code model.ErrorCode) model.ProblemDetails {
	t.Helper()

	AssertStatus(t, resp, status)
	assert.Equal(t, "application/problem+json", resp.Header().Get("Content-Type"))

	var problem model.ProblemDetails
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &problem), "decoding problem: %s", resp.Body.String())
	assert.Equal(t, status, problem.Status)
	if code != 0 {
		assert.Equal(t, code, problem.Code)
	}
	return problem
}

// AssertValidationError checks for a validation error on a specific field
func AssertValidationError(t *testing.T, resp *httptest.ResponseRecorder, field string) {
	t.Helper()

	problem := AssertProblem(t, resp, http.StatusUnprocessableEntity, model.ErrCodeValidation)
	for _, fe := range problem.Errors {
		if fe.Field == field {
			return
		}
	}
	t.Errorf("expected validation error on field %q, got %+v", field, problem.Errors)
}

// DecodeData decodes the "data" member of a success response into v.
func DecodeData(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), "decoding response: %s", resp.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, v), "decoding data: %s", string(envelope.Data))
}

// SessionCookie returns the session cookie the response set, or nil.
func SessionCookie(resp *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range resp.Result().Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	return nil
}

// ============================================================================
// Error Helpers
// ============================================================================

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T: %v", err, err)
	assert.Equal(t, code, oopsErr.Code())
}

// ============================================================================
// Database Assertion Helpers
// ============================================================================

// AssertRecordExists checks that table:id exists.
func AssertRecordExists(t *testing.T, db database.Database, table, id string) {
	t.Helper()
	assert.True(t, recordExists(t, db, table, id), "expected %s to exist", id)
}

// AssertRecordNotExists checks that table:id does not exist.
func AssertRecordNotExists(t *testing.T, db database.Database, table, id string) {
	t.Helper()
	assert.False(t, recordExists(t, db, table, id), "expected %s to be gone", id)
}

func recordExists(t *testing.T, db database.Database, table, id string) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results, err := db.Query(ctx, "SELECT id FROM type::thing($table, $key)", map[string]interface{}{
		"table": table,
		"key":   recordKey(table, id),
	})
	require.NoError(t, err, "helpers: querying %s", id)

	record, err := database.FirstRecord(results)
	if err != nil {
		return false
	}
	return record != nil
}

func recordKey(table, id string) string {
	if len(id) > len(table)+1 && id[:len(table)+1] == table+":" {
		return id[len(table)+1:]
	}
	return id
}

// ============================================================================
// Utility Helpers
// ============================================================================

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
