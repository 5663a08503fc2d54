package sdmx

// Package sdmx implements the SDMX information model and the mapping
// between that model and the two standardized wire families.
//
// It provides:
//
//   - An Issue-based error model with stable string codes
//     (duplicate_identifier, dangling_reference, ...) carrying identity
//     and key context.
//   - A typed information model under model/ (item schemes, data
//     structure definitions, dataflows, keys, data sets) with
//     invariant-checking mutators.
//   - Per-session reference resolution under resolver/ with forward and
//     external references.
//   - Wire codecs under format/sdmxml (SDMX-ML 2.1) and format/sdmxjson
//     (SDMX-JSON), registered through RegisterCodec.
//   - Flat row projection under tabular/ with attachment-level precedence.
//
// Design policy:
//   - Keep only the public surface in the root package; format grammars
//     live in their own packages and self-register, database/sql driver
//     style.
//   - The core performs no I/O beyond the supplied bytes/reader and
//     holds no global mutable state; one resolver per parse session.
//
// Typical usage:
//
//	import (
//	    "github.com/sdmxkit/sdmx"
//	    _ "github.com/sdmxkit/sdmx/format/sdmxml"
//	)
//
//	msg, err := sdmx.Parse(ctx, raw, sdmx.XMLStructure, nil)
//	out, err := sdmx.Write(ctx, msg, sdmx.XMLStructure, nil)
