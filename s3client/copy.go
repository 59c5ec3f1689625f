// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cybs3/cybs3/sigv4"
)

// CopyObject copies sourceKey to destKey within destBucket. sourceBucket,
// when empty, defaults to destBucket (a same-bucket copy).
func (c *Client) CopyObject(ctx context.Context, destBucket, sourceBucket, sourceKey, destKey string) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	if sourceBucket == "" {
		sourceBucket = destBucket
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.virtualHost(destBucket), "/"+destKey, nil, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-amz-copy-source", fmt.Sprintf("/%s/%s", sourceBucket, sourceKey))

	resp, err := c.do(req, sigv4.UnsignedPayload)
	if err != nil {
		return fmt.Errorf("s3client: copy object: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return statusError(resp.StatusCode, resp.Body)
	}
	return nil
}
