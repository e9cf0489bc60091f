package core

// Response is the aggregated outcome of one model call: the assistant text
// (possibly empty when the model only called tools), the tool calls in the
// order they were opened, and the token usage reported by the gateway.
type Response struct {
	Role      Role
	Model     string
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

type Usage struct {
	Input  int64
	Cached int64
	Output int64
	Total  int64
}

func (u *Usage) Inc(ou Usage) {
	u.Input += ou.Input
	u.Cached += ou.Cached
	u.Output += ou.Output
	u.Total += ou.Total
}

// Messages renders the response back into conversation form, ready to be
// appended to the history for the next turn.
func (r *Response) Messages() []Message {
	if len(r.ToolCalls) == 0 {
		return []Message{NewAssistantMessage(r.Text)}
	}
	return []Message{NewAssistantToolCalls(r.Text, r.ToolCalls...)}
}
