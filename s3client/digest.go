// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"bytes"
	"crypto"
	"encoding/hex"
	"fmt"

	"github.com/cybs3/cybs3/crypto/hashutil"
)

// bodySHA256Hex returns the lowercase hex SHA-256 digest of body, the form
// SigV4 expects for the non-streaming request bodies this client signs up
// front (CreateBucket's LocationConstraint, CompleteMultipart's part
// list).
func bodySHA256Hex(body []byte) (string, error) {
	sum, err := hashutil.Hash(bytes.NewReader(body), crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("s3client: unable to hash request body: %w", err)
	}
	return hex.EncodeToString(sum), nil
}
