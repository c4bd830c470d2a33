package model

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"
)

// Compression identifies how an artifact payload is wrapped.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"

	// maxDecodedBytes bounds decompressed payloads.
	maxDecodedBytes = 64 << 20
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// DetectCompression inspects the leading magic bytes of b.
func DetectCompression(b []byte) Compression {
	switch {
	case bytes.HasPrefix(b, zstdMagic):
		return CompressionZstd
	case bytes.HasPrefix(b, gzipMagic):
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// Decode unwraps and parses an artifact document.
func Decode(b []byte) (*Artifact, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalid)
	}

	c := DetectCompression(b)
	body, err := decompress(b, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %s payload: %w", ErrInvalid, c, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(body))
	dec.KnownFields(true)

	var a Artifact
	if err := dec.Decode(&a); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalid)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	return &a, nil
}

func decompress(b []byte, c Compression) ([]byte, error) {
	switch c {
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		out, err := io.ReadAll(io.LimitReader(gr, maxDecodedBytes))
		cerr := gr.Close()
		if err != nil {
			return nil, err
		}
		if cerr != nil {
			return nil, cerr
		}
		return out, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(bytes.NewReader(b), zstd.WithDecoderMaxMemory(maxDecodedBytes))
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		return io.ReadAll(dec)
	default:
		return b, nil
	}
}

// Encode writes the artifact as YAML wrapped in the given compression.
func Encode(w io.Writer, a *Artifact, c Compression) (retErr error) {
	if a == nil {
		return errors.New("artifact required")
	}

	var wc io.WriteCloser
	switch c {
	case CompressionGzip:
		wc = gzip.NewWriter(w)
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return fmt.Errorf("creating zstd writer: %w", err)
		}
		wc = zw
	case CompressionNone, "":
		wc = nopCloser{w}
	default:
		return fmt.Errorf("unsupported compression: %s", c)
	}
	defer func() {
		if cerr := wc.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("closing %s writer: %w", c, cerr)
		}
	}()

	enc := yaml.NewEncoder(wc)
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("encoding artifact: %w", err)
	}
	return enc.Close()
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
