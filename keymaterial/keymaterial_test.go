// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package keymaterial

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cybs3/cybs3/crypto/aead"
	"github.com/cybs3/cybs3/generator/randomness"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key, err := randomness.Bytes(aead.KeySize)
	require.NoError(t, err)
	return key
}

func TestMasterKey_SealOpenRoundtrip(t *testing.T) {
	t.Parallel()

	master, err := NewMasterKey(randomKey(t))
	require.NoError(t, err)

	plaintext := []byte("a fine config record")
	blob, err := master.Seal(plaintext)
	require.NoError(t, err)

	got, err := master.Open(blob)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestMasterKey_RejectsWrongKeySize(t *testing.T) {
	t.Parallel()

	_, err := NewMasterKey([]byte("too short"))
	require.Error(t, err)
}

func TestMasterKey_DistinctAliases(t *testing.T) {
	t.Parallel()

	a, err := NewMasterKey(randomKey(t))
	require.NoError(t, err)
	b, err := NewMasterKey(randomKey(t))
	require.NoError(t, err)

	require.NotEqual(t, a.Alias(), b.Alias())
}

func TestDataKey_EncryptDecryptStreamRoundtrip(t *testing.T) {
	t.Parallel()

	dataKey, err := NewDataKey(randomKey(t))
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte("cybs3-object-body"), 100000)

	encReader, err := dataKey.EncryptStream(bytes.NewReader(plaintext))
	require.NoError(t, err)

	ciphertext, err := io.ReadAll(encReader)
	require.NoError(t, err)
	require.NoError(t, encReader.Close())

	decReader, err := dataKey.DecryptStream(bytes.NewReader(ciphertext))
	require.NoError(t, err)

	got, err := io.ReadAll(decReader)
	require.NoError(t, err)
	require.NoError(t, decReader.Close())

	require.Equal(t, plaintext, got)
}

func TestDataKey_DecryptStreamSurvivesSlowReads(t *testing.T) {
	t.Parallel()

	dataKey, err := NewDataKey(randomKey(t))
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte("x"), 3*1<<20+17)

	encReader, err := dataKey.EncryptStream(bytes.NewReader(plaintext))
	require.NoError(t, err)
	ciphertext, err := io.ReadAll(encReader)
	require.NoError(t, err)
	require.NoError(t, encReader.Close())

	decReader, err := dataKey.DecryptStream(bytes.NewReader(ciphertext))
	require.NoError(t, err)
	defer decReader.Close()

	var got bytes.Buffer
	buf := make([]byte, 37)
	for {
		n, err := decReader.Read(buf)
		got.Write(buf[:n])
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	require.Equal(t, plaintext, got.Bytes())
}
