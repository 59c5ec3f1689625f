// SPDX-FileCopyrightText: 2023-present Datadog, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command cybs3 is a minimal terminal client over the cybs3 core. The
// full CLI surface (command groups keys / vaults / buckets / files /
// folders / config / login / logout, §6) is explicitly out of scope for
// this module; this entrypoint wires just enough of the core operations
// together to exercise them end to end from a shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/cybs3/cybs3/config"
	"github.com/cybs3/cybs3/crypto/mnemonic"
	"github.com/cybs3/cybs3/crypto/streamcodec"
	"github.com/cybs3/cybs3/keychain"
	"github.com/cybs3/cybs3/s3client"
	"github.com/cybs3/cybs3/session"
	"github.com/cybs3/cybs3/sigv4"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "cybs3:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: cybs3 <login|buckets|ls|put|get|rm> [args...]")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("unable to determine home directory: %w", err)
	}
	store := config.NewStore(home)
	secrets := keychain.NewFileStore(store.Dir())
	resolver := session.NewResolver(store, secrets, promptMnemonic)

	cmd, rest := args[0], args[1:]
	if cmd == "login" {
		return doLogin(secrets)
	}

	sess, err := resolver.Resolve("", session.CLIOverrides{})
	if err != nil {
		return err
	}

	client, err := s3client.NewClient(
		s3client.Endpoint{Host: sess.Endpoint.Host, Port: sess.Endpoint.Port, UseSSL: sess.Endpoint.UseSSL},
		sigv4.Credentials{AccessKeyID: sess.Settings.AccessKeyID, SecretAccessKey: sess.Settings.SecretAccessKey.Unwrap()},
		sess.Settings.Region,
	)
	if err != nil {
		return fmt.Errorf("unable to construct s3 client: %w", err)
	}
	defer client.Close()

	ctx := context.Background()

	switch cmd {
	case "buckets":
		return doBuckets(ctx, client)
	case "ls":
		return doList(ctx, client, sess.Settings.Bucket, rest)
	case "put":
		return doPut(ctx, client, sess, rest)
	case "get":
		return doGet(ctx, client, sess, rest)
	case "rm":
		return doRemove(ctx, client, sess.Settings.Bucket, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func doLogin(secrets keychain.Store) error {
	phrase, err := promptMnemonic()
	if err != nil {
		return err
	}
	if err := secrets.Save(phrase); err != nil {
		return fmt.Errorf("unable to save mnemonic: %w", err)
	}
	fmt.Println("mnemonic saved")
	return nil
}

func promptMnemonic() ([]string, error) {
	fmt.Fprint(os.Stderr, "mnemonic: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("unable to read mnemonic: %w", err)
	}

	phrase := strings.Fields(string(raw))
	if err := mnemonic.Validate(phrase); err != nil {
		return nil, err
	}
	return phrase, nil
}

func doBuckets(ctx context.Context, client *s3client.Client) error {
	names, err := client.ListBuckets(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func doList(ctx context.Context, client *s3client.Client, bucket string, args []string) error {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	objects, err := client.ListObjects(ctx, bucket, prefix, "/")
	if err != nil {
		return err
	}
	for _, o := range objects {
		if o.IsDirectory {
			fmt.Println(o.Key)
			continue
		}
		fmt.Printf("%10d  %s\n", o.Size, o.Key)
	}
	return nil
}

func doPut(ctx context.Context, client *s3client.Client, sess *session.Session, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: cybs3 put <local-path> <key>")
	}
	localPath, key := args[0], args[1]

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("unable to open %q: %w", localPath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("unable to stat %q: %w", localPath, err)
	}

	encrypted, err := sess.DataKey.EncryptStream(f)
	if err != nil {
		return fmt.Errorf("unable to start encryption: %w", err)
	}
	defer encrypted.Close()

	ciphertextLength := streamcodec.CiphertextLength(fi.Size())
	return client.PutObjectStream(ctx, sess.Settings.Bucket, key, encrypted, ciphertextLength)
}

func doGet(ctx context.Context, client *s3client.Client, sess *session.Session, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: cybs3 get <key> <local-path>")
	}
	key, localPath := args[0], args[1]

	body, err := client.GetObjectStream(ctx, sess.Settings.Bucket, key)
	if err != nil {
		return err
	}
	defer body.Close()

	decrypted, err := sess.DataKey.DecryptStream(body)
	if err != nil {
		return fmt.Errorf("unable to start decryption: %w", err)
	}
	defer decrypted.Close()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("unable to create %q: %w", localPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, decrypted); err != nil {
		return fmt.Errorf("unable to write %q: %w", localPath, err)
	}
	return nil
}

func doRemove(ctx context.Context, client *s3client.Client, bucket string, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: cybs3 rm <key>")
	}
	return client.DeleteObject(ctx, bucket, args[0])
}
