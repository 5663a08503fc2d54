package sdmx

import (
	"bufio"
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Statistical services routinely serve compressed payloads; the reader
// unwraps them by magic-byte sniffing so callers can hand bytes straight
// through. This sits on the byte boundary only and never alters the wire
// formats themselves.

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

func decodeInput(data []byte) (io.Reader, error) {
	return decodeInputReader(bytes.NewReader(data))
}

func decodeInputReader(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && len(head) < 2 {
		// Too short to be compressed; let the codec report the real issue.
		return br, nil
	}
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, Issues{{Code: CodeParseError, Message: "gzip input does not decompress", Cause: err}}
		}
		return zr, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, Issues{{Code: CodeParseError, Message: "zstd input does not decompress", Cause: err}}
		}
		return zr.IOReadCloser(), nil
	}
	return br, nil
}

// encodeOutput wraps w per the requested compression. The returned close
// function flushes the compressor and must be called after a successful
// write; it is a no-op for uncompressed output.
func encodeOutput(w io.Writer, c Compression) (io.Writer, func() error, error) {
	switch c {
	case CompressionNone:
		return w, func() error { return nil }, nil
	case CompressionGzip:
		zw := gzip.NewWriter(w)
		return zw, zw.Close, nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, nil, Issues{{Code: CodeParseError, Message: "zstd writer init failed", Cause: err}}
		}
		return zw, zw.Close, nil
	}
	return nil, nil, Issues{{Code: CodeInvalidValue, Message: "unknown compression selector"}}
}
