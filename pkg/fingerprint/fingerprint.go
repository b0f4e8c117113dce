// Package fingerprint derives the content digest used as document identity.
//
// A Digest is the lowercase hex encoding of the SHA-256 of the exact bytes of
// a document. The digest is only returned once the whole input has been
// consumed, so partial reads never leak to callers.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	// DigestLength is the length in chars of a hex encoded digest.
	DigestLength = sha256.Size * 2

	chunkSize = 32 * 1024
)

// Digest is the hex encoded SHA-256 of a document.
type Digest string

func (d Digest) String() string {
	return string(d)
}

// Bytes returns the raw 32-byte digest.
func (d Digest) Bytes() []byte {
	buf, _ := hex.DecodeString(string(d))
	return buf
}

// ParseDigest validates and normalizes a hex encoded digest.
func ParseDigest(s string) (Digest, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != DigestLength {
		return "", ErrInvalidDigest
	}
	if _, err := hex.DecodeString(s); err != nil {
		return "", ErrInvalidDigest
	}
	return Digest(s), nil
}

// FromBytes returns the digest of the given buffer.
func FromBytes(buf []byte) Digest {
	sum := sha256.Sum256(buf)
	return Digest(hex.EncodeToString(sum[:]))
}

// FromReader consumes r entirely and returns its digest. The context is
// checked between chunks so that long reads can be abandoned.
func FromReader(ctx context.Context, r io.Reader) (Digest, error) {
	return FromSizedReader(ctx, r, -1)
}

// FromSizedReader is like FromReader but also fails if the number of bytes
// consumed does not match the expected size. A negative size disables the
// check.
func FromSizedReader(
	ctx context.Context, r io.Reader, size int64,
) (Digest, error) {
	if r == nil {
		return "", &ReadError{Err: ErrNilReader}
	}

	h := sha256.New()
	buf := make([]byte, chunkSize)
	var read int64
	for {
		if err := ctx.Err(); err != nil {
			return "", &ReadError{Read: read, Err: err}
		}

		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
			read += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", &ReadError{Read: read, Err: err}
		}
	}

	if size >= 0 && read != size {
		return "", &ReadError{
			Read: read,
			Err:  fmt.Errorf("%w: expected %d bytes", ErrTruncated, size),
		}
	}

	return Digest(hex.EncodeToString(h.Sum(nil))), nil
}

// FromFile returns the digest of the file at the given path. The file size is
// checked against the bytes actually read to detect truncation.
func FromFile(ctx context.Context, path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &ReadError{Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", &ReadError{Err: err}
	}
	if info.IsDir() {
		return "", &ReadError{Err: fmt.Errorf("%s is a directory", path)}
	}

	return FromSizedReader(ctx, f, info.Size())
}
