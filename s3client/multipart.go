// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/cybs3/cybs3/sigv4"
)

// CompletedPart identifies one uploaded part for CompleteMultipart.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

type initiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	UploadID string   `xml:"UploadId"`
}

// InitiateMultipart starts a multipart upload for bucket/key and returns
// the upload ID S3 assigned. This is the optional large-object path (not
// required for the core put flow, which streams an object of any size in
// one request); it exists for future use without changing the wire format
// the chunk codec already handles.
func (c *Client) InitiateMultipart(ctx context.Context, bucket, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodPost, c.virtualHost(bucket), "/"+key, url.Values{"uploads": {""}}, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.do(req, sigv4.UnsignedPayload)
	if err != nil {
		return "", fmt.Errorf("s3client: initiate multipart: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", statusError(resp.StatusCode, resp.Body)
	}

	var parsed initiateMultipartUploadResult
	if err := xml.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("s3client: unable to decode initiate-multipart response: %w", err)
	}
	return parsed.UploadID, nil
}

// UploadPart uploads one part of an in-progress multipart upload and
// returns its ETag, which the caller must retain for CompleteMultipart.
func (c *Client) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, body io.Reader, length int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout(length))
	defer cancel()

	query := url.Values{
		"partNumber": {strconv.Itoa(partNumber)},
		"uploadId":   {uploadID},
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.virtualHost(bucket), "/"+key, query, body)
	if err != nil {
		return "", err
	}
	req.ContentLength = length

	resp, err := c.do(req, sigv4.UnsignedPayload)
	if err != nil {
		return "", fmt.Errorf("s3client: upload part: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return "", statusError(resp.StatusCode, resp.Body)
	}
	return resp.Header.Get("ETag"), nil
}

type completeMultipartUpload struct {
	XMLName xml.Name              `xml:"CompleteMultipartUpload"`
	Part    []completeMultipartPart `xml:"Part"`
}

type completeMultipartPart struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

// CompleteMultipart finalizes uploadID with parts. parts may be given in
// any order; they are sent sorted by ascending PartNumber, as the S3 API
// requires.
func (c *Client) CompleteMultipart(ctx context.Context, bucket, key, uploadID string, parts []CompletedPart) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	sorted := append([]CompletedPart{}, parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	body := completeMultipartUpload{}
	for _, p := range sorted {
		body.Part = append(body.Part, completeMultipartPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	encoded, err := xml.Marshal(body)
	if err != nil {
		return fmt.Errorf("s3client: unable to encode complete-multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.virtualHost(bucket), "/"+key, url.Values{"uploadId": {uploadID}}, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(encoded))

	bodyHash, err := bodySHA256Hex(encoded)
	if err != nil {
		return err
	}

	resp, err := c.do(req, bodyHash)
	if err != nil {
		return fmt.Errorf("s3client: complete multipart: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError(resp.StatusCode, resp.Body)
	}
	return nil
}

// AbortMultipart cancels an in-progress multipart upload, releasing any
// parts already uploaded.
func (c *Client) AbortMultipart(ctx context.Context, bucket, key, uploadID string) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodDelete, c.virtualHost(bucket), "/"+key, url.Values{"uploadId": {uploadID}}, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, sigv4.UnsignedPayload)
	if err != nil {
		return fmt.Errorf("s3client: abort multipart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, resp.Body)
	}
	return nil
}
