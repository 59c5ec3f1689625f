// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

package aead

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/require"

	"github.com/cybs3/cybs3/generator/randomness"
)

func mustKey(t *testing.T) []byte {
	t.Helper()
	key, err := randomness.Bytes(KeySize)
	require.NoError(t, err)
	return key
}

func TestSealOpen_Roundtrip(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	fz := fuzz.New().NilChance(0).NumElements(0, 4096)

	for i := 0; i < 50; i++ {
		var plaintext []byte
		fz.Fuzz(&plaintext)

		blob, err := Seal(key, plaintext)
		require.NoError(t, err)
		require.Len(t, blob, len(plaintext)+Overhead)

		got, err := Open(key, blob)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestSeal_DistinctNonces(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	plaintext := []byte("same plaintext every time")

	b1, err := Seal(key, plaintext)
	require.NoError(t, err)
	b2, err := Seal(key, plaintext)
	require.NoError(t, err)

	require.NotEqual(t, b1[:NonceSize], b2[:NonceSize])
	require.NotEqual(t, b1, b2)
}

func TestOpen_WrongKeyFails(t *testing.T) {
	t.Parallel()

	key := mustKey(t)
	other := mustKey(t)

	blob, err := Seal(key, []byte("secret"))
	require.NoError(t, err)

	_, err = Open(other, blob)
	require.ErrorIs(t, err, ErrAuthFailure)
}

func TestOpen_TamperedFails(t *testing.T) {
	t.Parallel()

	key := mustKey(t)

	blob, err := Seal(key, []byte("secret"))
	require.NoError(t, err)

	blob[len(blob)-1] ^= 0xFF

	_, err = Open(key, blob)
	require.ErrorIs(t, err, ErrAuthFailure)
}

func TestOpen_TooShortFails(t *testing.T) {
	t.Parallel()

	key := mustKey(t)

	_, err := Open(key, make([]byte, Overhead-1))
	require.ErrorIs(t, err, ErrAuthFailure)
}

func TestSeal_RejectsWrongKeySize(t *testing.T) {
	t.Parallel()

	_, err := Seal(make([]byte, 16), []byte("x"))
	require.Error(t, err)
}
