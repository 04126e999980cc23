package llmclient

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jgarzik/yo/internal/agent"
)

// schemaCache compiles each tool's JSON-Schema once, keyed by its raw
// bytes: the catalog is rebuilt every turn (plan-mode/allowed-tools
// filtering), but the schemas themselves rarely change.
var schemaCache sync.Map

func compileSchema(raw json.RawMessage) (*jsonschema.Schema, error) {
	key := string(raw)
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString("tool.schema.json", key)
	if err != nil {
		return nil, err
	}
	schemaCache.Store(key, compiled)
	return compiled, nil
}

// ValidateArguments checks a tool call's decoded arguments against its
// catalog schema. Called before dispatch so a malformed call from the
// model surfaces as a clear validation error rather than a confusing
// failure deep inside a built-in tool.
func ValidateArguments(tools []agent.ToolSchema, call agent.ToolCall) error {
	var schema *agent.ToolSchema
	for i := range tools {
		if tools[i].Name == call.Name {
			schema = &tools[i]
			break
		}
	}
	if schema == nil {
		return fmt.Errorf("unknown tool %q", call.Name)
	}
	if len(schema.Parameters) == 0 {
		return nil
	}

	compiled, err := compileSchema(schema.Parameters)
	if err != nil {
		return fmt.Errorf("compile schema for %s: %w", call.Name, err)
	}

	var args any
	if call.Arguments == "" {
		args = map[string]any{}
	} else if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return fmt.Errorf("%s: arguments are not valid JSON: %w", call.Name, err)
	}

	if err := compiled.Validate(args); err != nil {
		return fmt.Errorf("%s: arguments do not match schema: %w", call.Name, err)
	}
	return nil
}
