package sdmx

import (
	"bytes"
	"context"
	"io"
)

// Write serializes msg into the stated format. opts may be nil; the zero
// options write uncompressed output mirroring the in-memory data
// organization.
func Write(ctx context.Context, msg Message, f Format, opts *WriteOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTo(ctx, &buf, msg, f, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo is Write against an io.Writer.
func WriteTo(ctx context.Context, w io.Writer, msg Message, f Format, opts *WriteOptions) error {
	c, err := codecFor(f)
	if err != nil {
		return err
	}
	if opts == nil {
		opts = &WriteOptions{}
	}
	cw, closeFn, err := encodeOutput(w, opts.Compression)
	if err != nil {
		return err
	}
	if err := c.Write(ctx, cw, msg, f, opts); err != nil {
		return err
	}
	return closeFn()
}
