// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Sentinel errors the composer maps known S3 error Codes onto. Wrap with
// fmt.Errorf("...: %w", err) as they cross layers; callers test with
// errors.Is.
var (
	// ErrBucketNotFound maps S3 Code NoSuchBucket.
	ErrBucketNotFound = errors.New("s3client: bucket not found")
	// ErrObjectNotFound maps S3 Code NoSuchKey, and a bare HTTP 404 on
	// operations that do not return an XML error body (HEAD, GET).
	ErrObjectNotFound = errors.New("s3client: object not found")
	// ErrBucketNotEmpty maps S3 Code BucketNotEmpty.
	ErrBucketNotEmpty = errors.New("s3client: bucket not empty")
	// ErrAccessDenied maps S3 Code AccessDenied.
	ErrAccessDenied = errors.New("s3client: access denied")
	// ErrAuthenticationFailed maps S3 Codes InvalidAccessKeyId and
	// SignatureDoesNotMatch.
	ErrAuthenticationFailed = errors.New("s3client: authentication failed")
)

// apiError is a typed S3 error carrying the original status, Code and
// Message so an unrecognized Code still surfaces something actionable.
type apiError struct {
	StatusCode int
	Code       string
	Message    string
	Resource   string
}

func (e *apiError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("s3client: %s (%s): %s [%s]", e.Code, e.Resource, e.Message, httpStatusText(e.StatusCode))
	}
	return fmt.Sprintf("s3client: %s: %s [%s]", e.Code, e.Message, httpStatusText(e.StatusCode))
}

// Unwrap lets errors.Is match apiError against the sentinel its Code maps
// to, for every recognized Code.
func (e *apiError) Unwrap() error {
	switch e.Code {
	case "NoSuchBucket":
		return ErrBucketNotFound
	case "NoSuchKey":
		return ErrObjectNotFound
	case "BucketNotEmpty":
		return ErrBucketNotEmpty
	case "AccessDenied":
		return ErrAccessDenied
	case "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return ErrAuthenticationFailed
	default:
		return nil
	}
}

// xmlError mirrors the S3 <Error> response body shape.
type xmlError struct {
	XMLName  xml.Name `xml:"Error"`
	Code     string   `xml:"Code"`
	Message  string   `xml:"Message"`
	Resource string   `xml:"Resource"`
}

// parseErrorBody decodes an S3 XML error body into an *apiError. If body
// does not parse as the expected shape, it still returns an *apiError
// carrying the raw status so the caller has something to report.
func parseErrorBody(statusCode int, body io.Reader) error {
	raw, err := io.ReadAll(io.LimitReader(body, 64<<10))
	if err != nil {
		return &apiError{StatusCode: statusCode, Code: "Unknown", Message: fmt.Sprintf("unable to read error body: %v", err)}
	}

	var parsed xmlError
	if err := xml.Unmarshal(raw, &parsed); err != nil || parsed.Code == "" {
		return &apiError{StatusCode: statusCode, Code: "Unknown", Message: string(raw)}
	}

	return &apiError{
		StatusCode: statusCode,
		Code:       parsed.Code,
		Message:    parsed.Message,
		Resource:   parsed.Resource,
	}
}

func httpStatusText(code int) string {
	return fmt.Sprintf("HTTP %d", code)
}
