// Package sdmxml maps the information model to and from SDMX-ML 2.1.
//
// The reader is a streaming token loop over xml.Decoder: each recognized
// container dispatches its children through a localname-keyed grammar
// table, unknown children are skipped for forward compatibility, and
// cross-references are wired through a per-parse resolver session. The
// writer emits the inverse element stream, item schemes before the DSDs
// that reference them and DSDs before dataflows.
//
// Importing the package registers it for sdmx.FamilyXML:
//
//	import _ "github.com/sdmxkit/sdmx/format/sdmxml"
package sdmxml

import (
	"context"
	"io"

	"github.com/sdmxkit/sdmx"
)

// Namespace URIs of the SDMX-ML 2.1 schema set.
const (
	nsMessage = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/message"
	nsCommon  = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/common"
	nsStruct  = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/structure"
	nsGeneric = "http://www.sdmx.org/resources/sdmxml/schemas/v2_1/data/generic"
)

type codec struct{}

func init() {
	sdmx.RegisterCodec(sdmx.FamilyXML, codec{})
}

func (codec) Parse(ctx context.Context, r io.Reader, f sdmx.Format, opts *sdmx.ParseOptions) (sdmx.Message, error) {
	return parse(ctx, r, f, opts)
}

func (codec) Write(ctx context.Context, w io.Writer, msg sdmx.Message, f sdmx.Format, opts *sdmx.WriteOptions) error {
	return write(ctx, w, msg, f, opts)
}
