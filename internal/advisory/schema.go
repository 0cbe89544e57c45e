package advisory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// responseSchema 只约束类型，不要求字段齐全；缺失字段在解析时补默认值。
const responseSchema = `{
  "type": "object",
  "properties": {
    "bull_view": {"type": ["string", "null"]},
    "bear_view": {"type": ["string", "null"]},
    "chairman_conclusion": {"type": ["string", "null"]},
    "decision": {"type": ["string", "null"]},
    "adjustment": {"type": ["number", "string", "null"]}
  }
}`

func compileResponseSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("advisory.json", strings.NewReader(responseSchema)); err != nil {
		return nil, err
	}
	return compiler.Compile("advisory.json")
}

func validateResponse(schema *jsonschema.Schema, raw string) error {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("decode advisory json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("advisory schema: %w", err)
	}
	return nil
}
