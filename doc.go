// Package cybs3 is the root of the cybs3 client-side encryption and
// key-management core.
//
// cybs3 is a command-line client for S3-compatible object storage that
// encrypts object bodies on the client before upload and decrypts them
// after download, so the storage provider only ever sees ciphertext.
// This module implements the core: the BIP39-derived key hierarchy, the
// chunked AEAD stream codec, the encrypted local configuration store, and
// the AWS SigV4 request composer that binds them to S3. The module also
// carries a minimal command (cmd/cybs3) and a file-based mnemonic store
// (keychain); the full CLI surface, terminal UI, native OS keychain
// integration, and folder-sync engine live outside this module.
package cybs3
