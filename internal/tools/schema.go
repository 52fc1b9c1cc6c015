package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/invopop/jsonschema"
)

// schemaFor derives a JSON Schema from a tool's argument struct.
func schemaFor(v any) json.RawMessage {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: false,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(v)
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

func jsonBytesReader(data json.RawMessage) io.Reader {
	return bytes.NewReader(data)
}

// OutputSink receives streamed tool output chunks. The loop installs one
// to re-emit chunks as tool_execution_update events.
type OutputSink func(chunk string)

type outputSinkKey struct{}

// WithOutputSink stores an output sink in the context.
func WithOutputSink(ctx context.Context, sink OutputSink) context.Context {
	return context.WithValue(ctx, outputSinkKey{}, sink)
}

// OutputSinkFromContext retrieves the output sink, or nil.
func OutputSinkFromContext(ctx context.Context) OutputSink {
	sink, ok := ctx.Value(outputSinkKey{}).(OutputSink)
	if !ok {
		return nil
	}
	return sink
}
