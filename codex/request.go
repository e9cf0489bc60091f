package codex

// requestBody is the body of a request to the codex responses endpoint.
// Server-side conversation persistence is always disabled: the full history
// is re-sent on every call.
type requestBody struct {
	Model             string      `json:"model"`
	Instructions      string      `json:"instructions,omitempty"`
	Input             []inputItem `json:"input"`
	Tools             []tool      `json:"tools,omitempty"`
	ToolChoice        string      `json:"tool_choice,omitempty"`
	ParallelToolCalls *bool       `json:"parallel_tool_calls,omitempty"`
	Store             *bool       `json:"store,omitempty"`
	Stream            bool        `json:"stream"`
}

func buildRequest(model, instructions string, items []inputItem, tools []tool) requestBody {
	body := requestBody{
		Model:        model,
		Instructions: instructions,
		Input:        items,
		Store:        boolPtr(false),
		Stream:       true,
	}

	if len(tools) > 0 {
		body.Tools = tools
		body.ToolChoice = "auto"
		body.ParallelToolCalls = boolPtr(true)
	}

	return body
}
