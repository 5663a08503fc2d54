// Package sdmxjson maps the information model to and from SDMX-JSON.
//
// One document shape carries all three message kinds: structural artefacts
// and data sets under "data", service errors under "error", and the message
// header under "meta". References travel as SDMX URNs. Decoding goes
// through a DTO layer so the wire shape and the information model can
// evolve independently; cross-references are wired through a per-parse
// resolver session exactly as the XML codec does.
//
// Importing the package registers it for sdmx.FamilyJSON:
//
//	import _ "github.com/sdmxkit/sdmx/format/sdmxjson"
package sdmxjson

import (
	"context"
	"io"

	"github.com/sdmxkit/sdmx"
)

type codec struct{}

func init() {
	sdmx.RegisterCodec(sdmx.FamilyJSON, codec{})
}

func (codec) Parse(ctx context.Context, r io.Reader, f sdmx.Format, opts *sdmx.ParseOptions) (sdmx.Message, error) {
	return parse(ctx, r, f, opts)
}

func (codec) Write(ctx context.Context, w io.Writer, msg sdmx.Message, f sdmx.Format, opts *sdmx.WriteOptions) error {
	return write(ctx, w, msg, f, opts)
}
