// Package schema exposes the JSON schema of the emitted derivation record,
// so downstream consumers can validate and generate bindings for the JSONL
// output.
package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"nixtract/internal/derivation"
)

// Record reflects the derivation record into a pretty-printed JSON schema.
func Record() ([]byte, error) {
	reflector := &jsonschema.Reflector{}
	s := reflector.Reflect(&derivation.Record{})
	return json.MarshalIndent(s, "", "  ")
}
