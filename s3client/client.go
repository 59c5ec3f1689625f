// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package s3client implements the S3 Request Composer (§4.7): a thin,
// virtual-hosted-style REST client over the AWS S3 API, signed with SigV4,
// exposing exactly the operations the core needs to list, read, write and
// manage objects and buckets.
package s3client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cybs3/cybs3/net/httpclient"
	"github.com/cybs3/cybs3/sigv4"
)

const (
	listTimeout = 30 * time.Second
	getTimeout  = 30 * time.Second

	// uploadSecondsPerMiB and uploadTimeoutFloor implement the upload
	// timeout scaling rule in §5: roughly 2s per MiB, floor 300s.
	uploadSecondsPerMiB = 2
	uploadTimeoutFloor  = 300 * time.Second
)

// Endpoint identifies the S3-compatible host the Client talks to.
type Endpoint struct {
	Host   string
	Port   int
	UseSSL bool
}

// Client is a virtual-hosted-style S3 REST client bound to one endpoint
// and one set of credentials. It is safe for concurrent use; callers must
// call Close when done to release its connection pool.
type Client struct {
	http   *http.Client
	signer *sigv4.Signer
	ep     Endpoint
}

// NewClient constructs a Client. The underlying transport deliberately
// does not apply the SSRF-blocking authorizer net/httpclient uses
// elsewhere: an S3-compatible endpoint is explicit, user-supplied
// configuration (a self-hosted MinIO instance on a private address is a
// normal, intended target), not an attacker-influenced URL.
//
// WithTimeout(0) disables net/httpclient's blanket per-request deadline:
// every Client method already wraps its own context with the timeout
// appropriate to that operation (listTimeout, getTimeout, uploadTimeout),
// and a large upload must not be cut off by a flat 30s client-wide limit.
func NewClient(ep Endpoint, creds sigv4.Credentials, region string) (*Client, error) {
	signer, err := sigv4.NewSigner(creds, region)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:   httpclient.UnSafe(httpclient.WithFollowRedirect(true), httpclient.WithTimeout(0)),
		signer: signer,
		ep:     ep,
	}, nil
}

// Close releases the Client's idle connection pool.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// plainHost returns the endpoint host, scheme, and port with no bucket
// component, used by the bucket-less operations (list-buckets,
// delete-bucket).
func (c *Client) plainHost() string {
	return c.hostPort(c.ep.Host)
}

// virtualHost returns the virtual-hosted-style host for bucket, used by
// every per-bucket operation except delete-bucket.
func (c *Client) virtualHost(bucket string) string {
	return c.hostPort(bucket + "." + c.ep.Host)
}

func (c *Client) hostPort(host string) string {
	defaultPort := 80
	if c.ep.UseSSL {
		defaultPort = 443
	}
	if c.ep.Port == defaultPort || c.ep.Port == 0 {
		return host
	}
	return fmt.Sprintf("%s:%d", host, c.ep.Port)
}

func (c *Client) scheme() string {
	if c.ep.UseSSL {
		return "https"
	}
	return "http"
}

// uploadTimeout scales with payload length per §5: ~2s/MiB, floor 300s.
func uploadTimeout(length int64) time.Duration {
	mib := length / (1 << 20)
	scaled := time.Duration(mib) * uploadSecondsPerMiB * time.Second
	if scaled < uploadTimeoutFloor {
		return uploadTimeoutFloor
	}
	return scaled
}
