// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package streamcodec

import (
	"bytes"
	"io"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"

	"github.com/cybs3/cybs3/generator/randomness"
)

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := randomness.Bytes(32)
	require.NoError(t, err)
	return key
}

func encryptAll(t *testing.T, key, plaintext []byte) []byte {
	t.Helper()
	ciphertext, err := io.ReadAll(Encrypt(key, bytes.NewReader(plaintext)))
	require.NoError(t, err)
	return ciphertext
}

func TestRoundtrip_VariousSizes(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	fz := fuzz.New().NilChance(0)

	sizes := []int{0, 1, ChunkSize - 1, ChunkSize, ChunkSize + 1, 2*ChunkSize + 17}
	for _, size := range sizes {
		plaintext := make([]byte, size)
		fz.NumElements(size, size).Fuzz(&plaintext)

		ciphertext := encryptAll(t, key, plaintext)
		require.EqualValues(t, CiphertextLength(int64(size)), len(ciphertext))

		got, err := io.ReadAll(Decrypt(key, bytes.NewReader(ciphertext)))
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

// rechunkReader re-slices an underlying byte slice into reads of a fixed,
// possibly tiny, size regardless of the frame boundaries the encoder used,
// exercising the decoder's transport tolerance.
type rechunkReader struct {
	data []byte
	step int
}

func (r *rechunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.step
	if n > len(p) {
		n = len(p)
	}
	if n > len(r.data) {
		n = len(r.data)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func TestDecrypt_TolerantOfArbitraryRechunking(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	plaintext := make([]byte, 3*ChunkSize+12345)
	fuzz.New().NilChance(0).NumElements(len(plaintext), len(plaintext)).Fuzz(&plaintext)

	ciphertext := encryptAll(t, key, plaintext)

	for _, step := range []int{1, 3, 7, 512, ChunkSize / 3, ChunkSize + 1000} {
		got, err := io.ReadAll(Decrypt(key, &rechunkReader{data: append([]byte{}, ciphertext...), step: step}))
		require.NoError(t, err, "step=%d", step)
		require.Equal(t, plaintext, got, "step=%d", step)
	}
}

func TestDecrypt_EmptyYieldsNothing(t *testing.T) {
	t.Parallel()

	key := mustKey(t)

	got, err := io.ReadAll(Decrypt(key, bytes.NewReader(nil)))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDecrypt_TruncatedFrameFails(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	plaintext := []byte("hello, this is a short message")
	ciphertext := encryptAll(t, key, plaintext)

	_, err := io.ReadAll(Decrypt(key, bytes.NewReader(ciphertext[:10])))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestDecrypt_TamperedFrameFailsClosed(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	plaintext := []byte("hello, this is a short message")
	ciphertext := encryptAll(t, key, plaintext)

	ciphertext[len(ciphertext)-1] ^= 0xFF

	_, err := io.ReadAll(Decrypt(key, bytes.NewReader(ciphertext)))
	require.Error(t, err)
}

func TestCiphertextLength_Law(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, 0, CiphertextLength(0))
	require.EqualValues(t, 1+28, CiphertextLength(1))
	require.EqualValues(t, ChunkSize+28, CiphertextLength(ChunkSize))
	require.EqualValues(t, ChunkSize+28+1+28, CiphertextLength(ChunkSize+1))
}
