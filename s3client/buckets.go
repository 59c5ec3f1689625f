// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"

	"github.com/cybs3/cybs3/sigv4"
)

// createBucketConfiguration mirrors the body S3 expects for a
// CreateBucket call outside region us-east-1.
type createBucketConfiguration struct {
	XMLName            xml.Name `xml:"http://s3.amazonaws.com/doc/2006-03-01/ CreateBucketConfiguration"`
	LocationConstraint string   `xml:"LocationConstraint"`
}

// CreateBucket creates bucket in region. us-east-1 is S3's implicit
// default region and must not carry a LocationConstraint body; every
// other region requires one.
func (c *Client) CreateBucket(ctx context.Context, bucket, region string) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var body []byte
	bodyHash := sigv4.UnsignedPayload
	if region != "us-east-1" {
		encoded, err := xml.Marshal(createBucketConfiguration{LocationConstraint: region})
		if err != nil {
			return fmt.Errorf("s3client: unable to encode create-bucket body: %w", err)
		}
		body = encoded
		bodyHash, err = bodySHA256Hex(body)
		if err != nil {
			return err
		}
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.virtualHost(bucket), "/", nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if len(body) > 0 {
		req.ContentLength = int64(len(body))
	}

	resp, err := c.do(req, bodyHash)
	if err != nil {
		return fmt.Errorf("s3client: create bucket: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError(resp.StatusCode, resp.Body)
	}
	return nil
}

// DeleteBucket deletes bucket. Both 204 and 200 are treated as success.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodDelete, c.plainHost(), "/"+bucket, nil, nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, sigv4.UnsignedPayload)
	if err != nil {
		return fmt.Errorf("s3client: delete bucket: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, resp.Body)
	}
	return nil
}
