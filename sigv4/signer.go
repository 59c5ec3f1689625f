// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package sigv4 implements AWS Signature Version 4 request signing for the
// S3 service.
package sigv4

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// UnsignedPayload is used as bodyHash for streaming uploads whose body is
// not hashed up front; it is covered by TLS instead.
const UnsignedPayload = "UNSIGNED-PAYLOAD"

const (
	algorithm   = "AWS4-HMAC-SHA256"
	serviceName = "s3"
	terminator  = "aws4_request"
	dateFormat  = "20060102"
	timeFormat  = "20060102T150405Z"
)

// Credentials identifies the AWS access key / secret key pair used to sign
// a request.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// Signer signs HTTP requests for service s3 in Region using Credentials.
// Signer is pure given a fixed clock and is safe for concurrent use.
type Signer struct {
	Credentials Credentials
	Region      string
}

// NewSigner returns a Signer for region using creds.
func NewSigner(creds Credentials, region string) (*Signer, error) {
	if creds.AccessKeyID == "" || creds.SecretAccessKey == "" {
		return nil, errors.New("sigv4: access key id and secret access key must be provided")
	}
	if region == "" {
		return nil, errors.New("sigv4: region must be provided")
	}

	return &Signer{Credentials: creds, Region: region}, nil
}

// Sign mutates req to add Host, x-amz-date, x-amz-content-sha256 and
// Authorization headers, then returns req. bodyHash is the lowercase hex
// SHA-256 of the request body, or UnsignedPayload for streaming uploads.
// now is the signing timestamp (callers pass time.Now().UTC() in
// production; tests pin a fixed value against AWS's published vectors).
func (s *Signer) Sign(req *http.Request, bodyHash string, now time.Time) (*http.Request, error) {
	if req == nil {
		return nil, errors.New("sigv4: request must not be nil")
	}

	amzDate := now.UTC().Format(timeFormat)
	dateStamp := now.UTC().Format(dateFormat)

	req.Header.Set("Host", req.URL.Host)
	req.Header.Set("x-amz-date", amzDate)
	req.Header.Set("x-amz-content-sha256", bodyHash)

	canonicalRequest, signedHeaders := canonicalRequest(req, bodyHash)

	scope := fmt.Sprintf("%s/%s/%s/%s", dateStamp, s.Region, serviceName, terminator)
	stringToSign := strings.Join([]string{
		algorithm,
		amzDate,
		scope,
		hexSHA256([]byte(canonicalRequest)),
	}, "\n")

	signingKey := s.signingKey(dateStamp)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	auth := fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		algorithm, s.Credentials.AccessKeyID, scope, signedHeaders, signature)
	req.Header.Set("Authorization", auth)

	return req, nil
}

// signingKey derives HMAC(HMAC(HMAC(HMAC("AWS4"+secret, dateStamp), region), "s3"), "aws4_request").
func (s *Signer) signingKey(dateStamp string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+s.Credentials.SecretAccessKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(s.Region))
	kService := hmacSHA256(kRegion, []byte(serviceName))
	return hmacSHA256(kService, []byte(terminator))
}

// canonicalRequest builds the SigV4 canonical request string and the
// signed-headers list for req.
func canonicalRequest(req *http.Request, bodyHash string) (string, string) {
	headerNames := make([]string, 0, len(req.Header)+1)
	headerNames = append(headerNames, "host")
	for name := range req.Header {
		lower := strings.ToLower(name)
		if lower == "host" {
			continue
		}
		headerNames = append(headerNames, lower)
	}
	sort.Strings(headerNames)

	var canonicalHeaders strings.Builder
	for _, name := range headerNames {
		var value string
		if name == "host" {
			value = req.URL.Host
		} else {
			value = collapseWhitespace(req.Header.Get(http.CanonicalHeaderKey(name)))
		}
		canonicalHeaders.WriteString(name)
		canonicalHeaders.WriteByte(':')
		canonicalHeaders.WriteString(value)
		canonicalHeaders.WriteByte('\n')
	}

	signedHeaders := strings.Join(headerNames, ";")

	cr := strings.Join([]string{
		req.Method,
		canonicalURIPath(req.URL.Path),
		canonicalQuery(req.URL.Query()),
		canonicalHeaders.String(),
		signedHeaders,
		bodyHash,
	}, "\n")

	return cr, signedHeaders
}

// canonicalURIPath AWS-URI-encodes every path segment while preserving
// forward slashes.
func canonicalURIPath(path string) string {
	if path == "" {
		return "/"
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = awsURIEncode(seg, false)
	}
	return strings.Join(segments, "/")
}

// canonicalQuery sorts query parameters by name (byte-wise) and
// independently AWS-URI-encodes every name and value.
func canonicalQuery(values url.Values) string {
	if len(values) == 0 {
		return ""
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		vs := append([]string{}, values[name]...)
		sort.Strings(vs)
		for _, v := range vs {
			parts = append(parts, awsURIEncode(name, true)+"="+awsURIEncode(v, true))
		}
	}
	return strings.Join(parts, "&")
}

// awsURIEncode percent-encodes s per AWS's URI encoding rules: unreserved
// characters (A-Z a-z 0-9 - _ . ~) pass through verbatim; everything else
// is percent-encoded in uppercase hex. When encodeSlash is false, '/' also
// passes through verbatim (used for path segments, which are already
// split on '/').
func awsURIEncode(s string, encodeSlash bool) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '_', c == '.', c == '~':
			b.WriteByte(c)
		case c == '/' && !encodeSlash:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// collapseWhitespace trims leading/trailing whitespace and collapses runs
// of internal whitespace to a single space, per the canonical-headers rule.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func hexSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
