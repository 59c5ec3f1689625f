// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cybs3/cybs3/ioutil"
	"github.com/cybs3/cybs3/sigv4"
)

// newRequest builds an unsigned HTTP request against host/path with query,
// ready for Sign.
func (c *Client) newRequest(ctx context.Context, method, host, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := url.URL{Scheme: c.scheme(), Host: host, Path: path}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("s3client: unable to build request: %w", err)
	}
	return req, nil
}

// do signs req with bodyHash and executes it. It does not inspect the
// response status; callers turn non-2xx responses into errors with
// statusError.
func (c *Client) do(req *http.Request, bodyHash string) (*http.Response, error) {
	if _, err := c.signer.Sign(req, bodyHash, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("s3client: unable to sign request: %w", err)
	}
	return c.http.Do(req)
}

// statusError maps a non-2xx response to an error. When body is an S3 XML
// error whose Code is recognized, the returned *apiError matches that
// Code's sentinel via errors.Is. Otherwise a 404 maps to ErrObjectNotFound,
// a 403 to ErrAccessDenied, and any other status to a generic apiError.
func statusError(statusCode int, body io.Reader) error {
	var parsed error
	if body != nil {
		parsed = parseErrorBody(statusCode, body)
		if ae, ok := parsed.(*apiError); ok && ae.Unwrap() != nil {
			return parsed
		}
	}

	switch statusCode {
	case http.StatusNotFound:
		return ErrObjectNotFound
	case http.StatusForbidden:
		return ErrAccessDenied
	default:
		if parsed != nil {
			return parsed
		}
		return &apiError{StatusCode: statusCode, Code: "Unknown", Message: "no error body"}
	}
}

func isSuccess(code int) bool { return code >= 200 && code < 300 }

// listAllMyBucketsResult mirrors the ListBuckets response XML shape.
type listAllMyBucketsResult struct {
	XMLName xml.Name `xml:"ListAllMyBucketsResult"`
	Buckets struct {
		Bucket []struct {
			Name string `xml:"Name"`
		} `xml:"Bucket"`
	} `xml:"Buckets"`
}

// ListBuckets lists every bucket visible to the configured credentials.
func (c *Client) ListBuckets(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, c.plainHost(), "/", nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, sigv4.UnsignedPayload)
	if err != nil {
		return nil, fmt.Errorf("s3client: list buckets: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, statusError(resp.StatusCode, resp.Body)
	}

	var parsed listAllMyBucketsResult
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("s3client: unable to decode list-buckets response: %w", err)
	}

	names := make([]string, 0, len(parsed.Buckets.Bucket))
	for _, b := range parsed.Buckets.Bucket {
		names = append(names, b.Name)
	}
	return names, nil
}

// listBucketResultV2 mirrors the ListObjectsV2 response XML shape.
type listBucketResultV2 struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	IsTruncated           bool     `xml:"IsTruncated"`
	NextContinuationToken string   `xml:"NextContinuationToken"`
	Contents              []struct {
		Key          string `xml:"Key"`
		Size         int64  `xml:"Size"`
		LastModified string `xml:"LastModified"`
		ETag         string `xml:"ETag"`
	} `xml:"Contents"`
	CommonPrefixes []struct {
		Prefix string `xml:"Prefix"`
	} `xml:"CommonPrefixes"`
}

// ListObjects lists objects under prefix in bucket, grouping by delimiter
// (commonly "/") into directory-style common prefixes. It transparently
// paginates via NextContinuationToken until IsTruncated is false and
// deduplicates common prefixes across pages.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix, delimiter string) ([]Object, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var out []Object
	seenPrefixes := make(map[string]struct{})
	continuationToken := ""

	for {
		query := url.Values{"list-type": {"2"}}
		if prefix != "" {
			query.Set("prefix", prefix)
		}
		if delimiter != "" {
			query.Set("delimiter", delimiter)
		}
		if continuationToken != "" {
			query.Set("continuation-token", continuationToken)
		}

		req, err := c.newRequest(ctx, http.MethodGet, c.virtualHost(bucket), "/", query, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.do(req, sigv4.UnsignedPayload)
		if err != nil {
			return nil, fmt.Errorf("s3client: list objects: %w", err)
		}

		if !isSuccess(resp.StatusCode) {
			err := statusError(resp.StatusCode, resp.Body)
			resp.Body.Close()
			return nil, err
		}

		var parsed listBucketResultV2
		decodeErr := xml.NewDecoder(resp.Body).Decode(&parsed)
		resp.Body.Close()
		if decodeErr != nil {
			return nil, fmt.Errorf("s3client: unable to decode list-objects response: %w", decodeErr)
		}

		for _, entry := range parsed.Contents {
			lastModified, _ := time.Parse(time.RFC3339, entry.LastModified)
			out = append(out, Object{
				Key:          entry.Key,
				Size:         entry.Size,
				LastModified: lastModified,
				IsDirectory:  false,
				ETag:         entry.ETag,
			})
		}

		for _, cp := range parsed.CommonPrefixes {
			if _, dup := seenPrefixes[cp.Prefix]; dup {
				continue
			}
			seenPrefixes[cp.Prefix] = struct{}{}
			out = append(out, Object{Key: cp.Prefix, IsDirectory: true})
		}

		if !parsed.IsTruncated {
			break
		}
		continuationToken = parsed.NextContinuationToken
	}

	return out, nil
}

// HeadObjectSize returns the content length of bucket/key, nil if the
// object does not exist, or ErrAccessDenied on a 403.
func (c *Client) HeadObjectSize(ctx context.Context, bucket, key string) (*int64, error) {
	ctx, cancel := context.WithTimeout(ctx, getTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodHead, c.virtualHost(bucket), "/"+key, nil, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, sigv4.UnsignedPayload)
	if err != nil {
		return nil, fmt.Errorf("s3client: head object: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, nil
	case http.StatusForbidden:
		return nil, ErrAccessDenied
	}

	if !isSuccess(resp.StatusCode) {
		return nil, statusError(resp.StatusCode, nil)
	}

	size := resp.ContentLength
	return &size, nil
}

// GetObjectStream returns the body of bucket/key as a lazily-read stream.
// getTimeout bounds only the wait for the response header (time to first
// byte); once headers arrive the deadline is lifted and ioutil.TimeoutReader
// takes over, bounding the gap between individual reads instead of the
// download as a whole. The caller must Close the returned ReadCloser.
func (c *Client) GetObjectStream(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.virtualHost(bucket), "/"+key, nil, nil)
	if err != nil {
		return nil, err
	}

	headerCtx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(headerCtx)
	watchdog := time.AfterFunc(getTimeout, cancel)

	resp, err := c.do(req, sigv4.UnsignedPayload)
	watchdog.Stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("s3client: get object: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		cancel()
		return nil, ErrObjectNotFound
	}
	if !isSuccess(resp.StatusCode) {
		err := statusError(resp.StatusCode, resp.Body)
		resp.Body.Close()
		cancel()
		return nil, err
	}

	body := &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return &timeoutReadCloser{r: ioutil.TimeoutReader(body, getTimeout), c: body}, nil
}

// cancelOnClose releases the header-phase watchdog's context once the
// response body is closed, whether that happens because the caller
// finished reading or gave up early.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// timeoutReadCloser pairs a TimeoutReader-wrapped Reader with the
// underlying body's Close, since TimeoutReader only implements io.Reader.
type timeoutReadCloser struct {
	r io.Reader
	c io.Closer
}

func (t *timeoutReadCloser) Read(p []byte) (int, error) { return t.r.Read(p) }
func (t *timeoutReadCloser) Close() error               { return t.c.Close() }

// PutObjectStream uploads body (exactly length bytes) to bucket/key,
// streaming it directly to the socket without buffering. The signed
// bodyHash is UNSIGNED-PAYLOAD: integrity is provided by TLS for the
// streaming body, not the signature.
func (c *Client) PutObjectStream(ctx context.Context, bucket, key string, body io.Reader, length int64) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout(length))
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPut, c.virtualHost(bucket), "/"+key, nil, body)
	if err != nil {
		return err
	}
	req.ContentLength = length
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(req, sigv4.UnsignedPayload)
	if err != nil {
		return fmt.Errorf("s3client: put object: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError(resp.StatusCode, resp.Body)
	}
	return nil
}

// DeleteObject deletes bucket/key. Both 204 and 200 are treated as
// success, per S3's documented (and MinIO-observed) behavior.
func (c *Client) DeleteObject(ctx context.Context, bucket, key string) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodDelete, c.virtualHost(bucket), "/"+key, nil, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, sigv4.UnsignedPayload)
	if err != nil {
		return fmt.Errorf("s3client: delete object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, resp.Body)
	}
	return nil
}
