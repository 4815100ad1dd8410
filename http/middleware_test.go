package http_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	gateway "github.com/sagarc03/swiftpath/http"
	"github.com/sagarc03/swiftpath/keybackend"
	stowry "github.com/sagarc03/stowry-go"
	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func testVerifier() *gateway.SignatureVerifier {
	store := keybackend.NewMapSecretStore(map[string]string{"AKIATEST": "testsecret"})
	return gateway.NewSignatureVerifier(gateway.AWSConfig{Region: "us-east-1", Service: "s3"}, store)
}

func TestAuthMiddleware_PublicAccess(t *testing.T) {
	wrapped := gateway.AuthMiddleware(nil)(okHandler())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/c/test.txt", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestAuthMiddleware_NoSignature(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
	wrapped := gateway.AuthMiddleware(testVerifier())(handler)

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/c/test.txt", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthorized")
}

func TestAuthMiddleware_InvalidSignature(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
	wrapped := gateway.AuthMiddleware(testVerifier())(handler)

	req := httptest.NewRequest(http.MethodGet, "/c/test.txt?X-Amz-Algorithm=AWS4-HMAC-SHA256&X-Amz-Credential=WRONGKEY/20260112/us-east-1/s3/aws4_request&X-Amz-Date=20260112T070000Z&X-Amz-Expires=3600&X-Amz-SignedHeaders=host&X-Amz-Signature=invalid", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddleware_StowrySignature(t *testing.T) {
	wrapped := gateway.AuthMiddleware(testVerifier())(okHandler())

	ts := time.Now().Unix()
	sig := stowry.Sign("testsecret", http.MethodGet, "/c/test.txt", ts, 900)
	target := "/c/test.txt?" + stowry.StowryCredentialParam + "=AKIATEST&" +
		stowry.StowryDateParam + "=" + strconv.FormatInt(ts, 10) + "&" +
		stowry.StowryExpiresParam + "=900&" +
		stowry.StowrySignatureParam + "=" + sig

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_SplitsReadAndWriteAuth(t *testing.T) {
	cfg := &gateway.HandlerConfig{WriteVerifier: testVerifier()}
	router := gateway.NewHandler(cfg, memoryWith(t, map[string]string{"k": "v"})).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/c/k", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "reads are public")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/c/k", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "writes need a signature")
}
