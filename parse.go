package sdmx

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Codec parses and writes one wire family. Implementations live under
// format/ and register themselves in init.
type Codec interface {
	Parse(ctx context.Context, r io.Reader, f Format, opts *ParseOptions) (Message, error)
	Write(ctx context.Context, w io.Writer, msg Message, f Format, opts *WriteOptions) error
}

var (
	codecsMu sync.RWMutex
	codecs   = map[Family]Codec{}
)

// RegisterCodec installs the codec for a wire family. It is intended to be
// called from format package init functions, database/sql driver style.
func RegisterCodec(f Family, c Codec) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	codecs[f] = c
}

func codecFor(f Format) (Codec, error) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	c, ok := codecs[f.Family()]
	if !ok {
		return nil, Issues{{
			Code: CodeUnsupportedMessageType,
			Message: fmt.Sprintf("no codec registered for %s; import github.com/sdmxkit/sdmx/format/%s",
				f.Family(), map[Family]string{FamilyXML: "sdmxml", FamilyJSON: "sdmxjson"}[f.Family()]),
		}}
	}
	return c, nil
}

// Parse reads one message from data in the stated format. Compressed input
// (gzip or zstd) is unwrapped transparently. opts may be nil.
func Parse(ctx context.Context, data []byte, f Format, opts *ParseOptions) (Message, error) {
	r, err := decodeInput(data)
	if err != nil {
		return nil, err
	}
	return parseReader(ctx, r, f, opts)
}

// ParseReader is Parse over an incrementally readable stream.
func ParseReader(ctx context.Context, r io.Reader, f Format, opts *ParseOptions) (Message, error) {
	dr, err := decodeInputReader(r)
	if err != nil {
		return nil, err
	}
	return parseReader(ctx, dr, f, opts)
}

func parseReader(ctx context.Context, r io.Reader, f Format, opts *ParseOptions) (Message, error) {
	c, err := codecFor(f)
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &ParseOptions{}
	}
	return c.Parse(ctx, r, f, opts)
}
