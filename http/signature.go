package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	stowry "github.com/sagarc03/stowry-go"
)

const (
	SignatureAlgorithm = "AWS4-HMAC-SHA256"
	MaxExpiresSeconds  = 604800 // 7 days
	DateTimeFormat     = "20060102T150405Z"
	DateFormat         = "20060102"
)

// SecretStore maps an access key to its secret.
type SecretStore interface {
	Lookup(accessKey string) (secretKey string, err error)
}

// RequestVerifier authenticates a request. AuthMiddleware rejects the request
// when Verify returns an error.
type RequestVerifier interface {
	Verify(r *http.Request) error
}

// AWSConfig names the scope AWS presigned URLs must be issued for.
type AWSConfig struct {
	Region  string `mapstructure:"region"`
	Service string `mapstructure:"service"`
}

// SignatureVerifier accepts both Stowry native presigned URLs (X-Stowry-*)
// and AWS Signature V4 presigned URLs (X-Amz-*).
type SignatureVerifier struct {
	stowry *StowrySignatureVerifier
	aws    *AWSSignatureVerifier
}

func NewSignatureVerifier(cfg AWSConfig, store SecretStore) *SignatureVerifier {
	return &SignatureVerifier{
		stowry: NewStowrySignatureVerifier(store),
		aws:    NewAWSSignatureVerifier(cfg.Region, cfg.Service, store),
	}
}

func (v *SignatureVerifier) Verify(r *http.Request) error {
	query := r.URL.Query()
	switch {
	case query.Get(stowry.StowrySignatureParam) != "":
		return v.stowry.Verify(r)
	case query.Get("X-Amz-Signature") != "":
		return v.aws.Verify(r)
	default:
		return fmt.Errorf("no supported signature found: %w", ErrUnauthorized)
	}
}

// StowrySignatureVerifier checks URLs produced by stowry-go's presign helpers.
type StowrySignatureVerifier struct {
	store SecretStore
	now   func() time.Time
}

func NewStowrySignatureVerifier(store SecretStore) *StowrySignatureVerifier {
	return &StowrySignatureVerifier{store: store, now: time.Now}
}

func (v *StowrySignatureVerifier) Verify(r *http.Request) error {
	query := r.URL.Query()
	credential := query.Get(stowry.StowryCredentialParam)
	date := query.Get(stowry.StowryDateParam)
	expiresStr := query.Get(stowry.StowryExpiresParam)
	signature := query.Get(stowry.StowrySignatureParam)

	if credential == "" || date == "" || expiresStr == "" || signature == "" {
		return fmt.Errorf("missing required signature parameters: %w", ErrUnauthorized)
	}

	timestamp, err := strconv.ParseInt(date, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid date: %w", ErrUnauthorized)
	}

	expires, err := strconv.ParseInt(expiresStr, 10, 64)
	if err != nil || expires <= 0 || expires > MaxExpiresSeconds {
		return fmt.Errorf("invalid expires: must be between 1 and %d: %w", MaxExpiresSeconds, ErrUnauthorized)
	}

	if v.now().Unix() > timestamp+expires {
		return fmt.Errorf("signature expired: %w", ErrUnauthorized)
	}

	secretKey, err := v.store.Lookup(credential)
	if err != nil {
		return fmt.Errorf("access key not found: %w", ErrUnauthorized)
	}

	expected := stowry.Sign(secretKey, r.Method, r.URL.Path, timestamp, expires)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch: %w", ErrUnauthorized)
	}
	return nil
}

// AWSSignatureVerifier verifies AWS Signature V4 presigned URLs, so S3 SDK
// presigners can talk to the gateway.
type AWSSignatureVerifier struct {
	Region  string
	Service string
	store   SecretStore
}

func NewAWSSignatureVerifier(region, service string, store SecretStore) *AWSSignatureVerifier {
	return &AWSSignatureVerifier{Region: region, Service: service, store: store}
}

// Verify checks the X-Amz-* query parameters. The Host header takes part in
// the canonical request, so it is copied from r.Host first.
func (v *AWSSignatureVerifier) Verify(r *http.Request) error {
	query := r.URL.Query()
	params, err := v.extractParams(query)
	if err != nil {
		return err
	}

	if err := v.validateParams(params); err != nil {
		return err
	}

	secretKey, err := v.store.Lookup(params.accessKey)
	if err != nil {
		return fmt.Errorf("access key not found: %w", ErrUnauthorized)
	}

	headers := r.Header.Clone()
	headers.Set("Host", r.Host)

	expectedSignature := calculateSignature(
		secretKey,
		r.Method,
		r.URL.Path,
		query,
		headers,
		params.requestTime,
		params.dateStamp,
		params.region,
		params.service,
		params.signedHeaders,
	)

	if !hmac.Equal([]byte(expectedSignature), []byte(params.signature)) {
		return fmt.Errorf("signature mismatch: %w", ErrUnauthorized)
	}

	return nil
}

type signatureParams struct {
	algorithm     string
	accessKey     string
	dateStamp     string
	region        string
	service       string
	requestTime   time.Time
	expires       int
	signedHeaders string
	signature     string
}

func (v *AWSSignatureVerifier) extractParams(query url.Values) (*signatureParams, error) {
	amzAlgorithm := query.Get("X-Amz-Algorithm")
	amzCredential := query.Get("X-Amz-Credential")
	amzDate := query.Get("X-Amz-Date")
	amzExpires := query.Get("X-Amz-Expires")
	amzSignedHeaders := query.Get("X-Amz-SignedHeaders")
	amzSignature := query.Get("X-Amz-Signature")

	if amzAlgorithm == "" || amzCredential == "" || amzDate == "" ||
		amzExpires == "" || amzSignedHeaders == "" || amzSignature == "" {
		return nil, fmt.Errorf("missing required signature parameters: %w", ErrUnauthorized)
	}

	requestTime, err := time.Parse(DateTimeFormat, amzDate)
	if err != nil {
		return nil, fmt.Errorf("invalid X-Amz-Date format: %w", ErrUnauthorized)
	}

	expires, err := strconv.Atoi(amzExpires)
	if err != nil || expires <= 0 || expires > MaxExpiresSeconds {
		return nil, fmt.Errorf("invalid X-Amz-Expires: must be between 1 and %d: %w", MaxExpiresSeconds, ErrUnauthorized)
	}

	credParts := strings.Split(amzCredential, "/")
	if len(credParts) != 5 {
		return nil, fmt.Errorf("invalid X-Amz-Credential format: %w", ErrUnauthorized)
	}

	if credParts[4] != "aws4_request" {
		return nil, fmt.Errorf("invalid credential terminator: expected aws4_request: %w", ErrUnauthorized)
	}

	return &signatureParams{
		algorithm:     amzAlgorithm,
		accessKey:     credParts[0],
		dateStamp:     credParts[1],
		region:        credParts[2],
		service:       credParts[3],
		requestTime:   requestTime,
		expires:       expires,
		signedHeaders: amzSignedHeaders,
		signature:     amzSignature,
	}, nil
}

func (v *AWSSignatureVerifier) validateParams(params *signatureParams) error {
	if params.algorithm != SignatureAlgorithm {
		return fmt.Errorf("invalid algorithm: expected %s, got %s: %w", SignatureAlgorithm, params.algorithm, ErrUnauthorized)
	}

	if time.Now().After(params.requestTime.Add(time.Duration(params.expires) * time.Second)) {
		return fmt.Errorf("signature expired: %w", ErrUnauthorized)
	}

	if params.dateStamp != params.requestTime.Format(DateFormat) {
		return fmt.Errorf("credential date mismatch: %w", ErrUnauthorized)
	}

	if params.region != v.Region {
		return fmt.Errorf("region mismatch: expected %s, got %s: %w", v.Region, params.region, ErrUnauthorized)
	}

	if params.service != v.Service {
		return fmt.Errorf("service mismatch: expected %s, got %s: %w", v.Service, params.service, ErrUnauthorized)
	}

	return nil
}

func calculateSignature(
	secretKey, method, path string,
	query url.Values,
	headers http.Header,
	requestTime time.Time,
	dateStamp, region, service, signedHeaders string,
) string {
	canonicalRequest := buildCanonicalRequest(method, path, query, headers, signedHeaders)

	credentialScope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, region, service)
	stringToSign := buildStringToSign(requestTime, credentialScope, canonicalRequest)

	signingKey := deriveSigningKey(secretKey, dateStamp, region, service)

	return hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))
}

func buildCanonicalRequest(method, path string, query url.Values, headers http.Header, signedHeaders string) string {
	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s\n%s",
		method,
		path,
		buildCanonicalQueryString(query),
		buildCanonicalHeaders(headers, signedHeaders),
		signedHeaders,
		"UNSIGNED-PAYLOAD",
	)
}

// buildCanonicalHeaders renders the signed headers sorted, one "name:value\n"
// line each.
func buildCanonicalHeaders(headers http.Header, signedHeaders string) string {
	headerNames := strings.Split(signedHeaders, ";")
	sort.Strings(headerNames)

	var result strings.Builder
	for _, name := range headerNames {
		result.WriteString(name)
		result.WriteString(":")
		result.WriteString(strings.TrimSpace(headers.Get(name)))
		result.WriteString("\n")
	}
	return result.String()
}

func buildCanonicalQueryString(query url.Values) string {
	params := url.Values{}
	for k, v := range query {
		if k != "X-Amz-Signature" {
			params[k] = v
		}
	}
	return params.Encode()
}

func buildStringToSign(requestTime time.Time, credentialScope, canonicalRequest string) string {
	return fmt.Sprintf("%s\n%s\n%s\n%s",
		SignatureAlgorithm,
		requestTime.Format(DateTimeFormat),
		credentialScope,
		sha256Hash(canonicalRequest),
	)
}

func deriveSigningKey(secretKey, dateStamp, region, service string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(service))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hash(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}
