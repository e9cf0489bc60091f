package core

// Tool describes one callable tool offered to the model. Params maps
// parameter name to its schema; execution happens outside this package.
type Tool struct {
	Name   string
	Desc   string
	Params map[string]ToolParam
}

// ToolParam is a single parameter schema, a small subset of JSON Schema.
type ToolParam struct {
	Type JSType `json:"type"`
	Desc string `json:"description"`

	Nullable *bool `json:"nullable,omitempty"`

	// element schema when Type is JSTArray
	Items *ToolParam `json:"items,omitempty"`

	// closed value set when Type is JSTString
	Enum []string `json:"enum,omitempty"`
}

type JSType string

const (
	JSTString  JSType = "string"
	JSTNumber  JSType = "number"
	JSTBoolean JSType = "boolean"
	JSTArray   JSType = "array"
)
