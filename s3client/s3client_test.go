// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package s3client

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cybs3/cybs3/sigv4"
)

// newTestClient builds a Client against srv without going through
// NewClient's production transport: virtual-hosted-style requests target
// a synthetic host ("bucket.<endpoint-host>") that DNS cannot resolve, so
// tests dial srv's real address regardless of the Host the request names.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	signer, err := sigv4.NewSigner(
		sigv4.Credentials{AccessKeyID: "AKIDEXAMPLE", SecretAccessKey: "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY"},
		"us-east-1",
	)
	require.NoError(t, err)

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(ctx, network, u.Host)
		},
	}

	client := &Client{
		http:   &http.Client{Transport: transport},
		signer: signer,
		ep:     Endpoint{Host: "s3.example.com", Port: 0, UseSSL: false},
	}
	t.Cleanup(client.Close)

	return client
}

func TestListBuckets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListAllMyBucketsResult><Buckets><Bucket><Name>alpha</Name></Bucket><Bucket><Name>beta</Name></Bucket></Buckets></ListAllMyBucketsResult>`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	names, err := client.ListBuckets(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "beta"}, names)
}

func TestListObjects_PaginatesAndDedupesPrefixes(t *testing.T) {
	page := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page++
		w.WriteHeader(http.StatusOK)
		if page == 1 {
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>tok2</NextContinuationToken>
  <Contents><Key>a.txt</Key><Size>10</Size><LastModified>2024-01-01T00:00:00.000Z</LastModified><ETag>"e1"</ETag></Contents>
  <CommonPrefixes><Prefix>dir/</Prefix></CommonPrefixes>
</ListBucketResult>`)
			return
		}
		require.Equal(t, "tok2", r.URL.Query().Get("continuation-token"))
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult>
  <IsTruncated>false</IsTruncated>
  <Contents><Key>b.txt</Key><Size>20</Size><LastModified>2024-01-02T00:00:00.000Z</LastModified><ETag>"e2"</ETag></Contents>
  <CommonPrefixes><Prefix>dir/</Prefix></CommonPrefixes>
</ListBucketResult>`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	objects, err := client.ListObjects(context.Background(), "my-bucket", "", "/")
	require.NoError(t, err)

	require.Len(t, objects, 3)
	require.Equal(t, "a.txt", objects[0].Key)
	require.False(t, objects[0].IsDirectory)
	require.Equal(t, "dir/", objects[1].Key)
	require.True(t, objects[1].IsDirectory)
	require.Equal(t, "b.txt", objects[2].Key)
	require.Equal(t, 2, page)
}

func TestHeadObjectSize_NotFoundReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	size, err := client.HeadObjectSize(context.Background(), "bucket", "missing.txt")
	require.NoError(t, err)
	require.Nil(t, size)
}

func TestHeadObjectSize_ForbiddenIsAccessDenied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.HeadObjectSize(context.Background(), "bucket", "secret.txt")
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestHeadObjectSize_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "42")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	size, err := client.HeadObjectSize(context.Background(), "bucket", "found.txt")
	require.NoError(t, err)
	require.NotNil(t, size)
	require.Equal(t, int64(42), *size)
}

func TestGetObjectStream_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.GetObjectStream(context.Background(), "bucket", "missing.txt")
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestGetObjectStream_YieldsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "UNSIGNED-PAYLOAD", r.Header.Get("x-amz-content-sha256"))
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ciphertext-body")
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	body, err := client.GetObjectStream(context.Background(), "bucket", "object.bin")
	require.NoError(t, err)
	defer body.Close()

	got, err := io.ReadAll(body)
	require.NoError(t, err)
	require.Equal(t, "ciphertext-body", string(got))
}

func TestPutObjectStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		require.Equal(t, int64(11), r.ContentLength)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Equal(t, "hello world", string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	err := client.PutObjectStream(context.Background(), "bucket", "object.bin", strings.NewReader("hello world"), 11)
	require.NoError(t, err)
}

func TestDeleteObject_AcceptsBoth200And204(t *testing.T) {
	for _, status := range []int{http.StatusNoContent, http.StatusOK} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		client := newTestClient(t, srv)
		err := client.DeleteObject(context.Background(), "bucket", "object.bin")
		require.NoError(t, err)
		srv.Close()
	}
}

func TestCreateBucket_UsEast1SendsNoBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Empty(t, body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	err := client.CreateBucket(context.Background(), "bucket", "us-east-1")
	require.NoError(t, err)
}

func TestCreateBucket_OtherRegionSendsLocationConstraint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.Contains(t, string(body), "eu-west-1")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	err := client.CreateBucket(context.Background(), "bucket", "eu-west-1")
	require.NoError(t, err)
}

func TestCopyObject_SetsCopySourceHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/source-bucket/source.bin", r.Header.Get("x-amz-copy-source"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	err := client.CopyObject(context.Background(), "dest-bucket", "source-bucket", "source.bin", "dest.bin")
	require.NoError(t, err)
}

func TestErrorMapping_NoSuchKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>nope</Message><Resource>/bucket/missing.bin</Resource></Error>`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	err := client.CopyObject(context.Background(), "bucket", "", "missing.bin", "dest.bin")
	require.ErrorIs(t, err, ErrObjectNotFound)
}
