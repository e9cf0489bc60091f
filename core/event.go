package core

// Event is one incremental result from a response stream. Exactly one of the
// payload fields is meaningful, selected by Type.
type Event struct {
	Type     EventType
	Delta    string
	Call     ToolCall
	Response Response
	Err      error
}

type EventType int

const (
	EvUnk EventType = iota

	// EvDelta carries a fragment of assistant output text in Delta.
	EvDelta

	// EvToolCallBegin announces a new tool call; Call carries the resolved
	// call id and tool name, with empty Arguments.
	EvToolCallBegin

	// EvToolCallDelta carries an argument fragment for an in-flight tool
	// call: Call.ID names the call, Delta holds the fragment.
	EvToolCallDelta

	// EvToolCall carries a completed tool call with its full arguments.
	EvToolCall

	// EvResp carries the final aggregated response and is always the last
	// event of a successful stream.
	EvResp

	// EvError carries a terminal error; no further events follow.
	EvError
)

func NewEvDelta(delta string) Event {
	return Event{
		Type:  EvDelta,
		Delta: delta,
	}
}

func NewEvToolCallBegin(id, name string) Event {
	return Event{
		Type: EvToolCallBegin,
		Call: ToolCall{ID: id, Name: name},
	}
}

func NewEvToolCallDelta(id, delta string) Event {
	return Event{
		Type:  EvToolCallDelta,
		Call:  ToolCall{ID: id},
		Delta: delta,
	}
}

func NewEvToolCall(call ToolCall) Event {
	return Event{
		Type: EvToolCall,
		Call: call,
	}
}

func NewEvResp(response Response) Event {
	return Event{
		Type:     EvResp,
		Response: response,
	}
}

func NewEvError(err error) Event {
	return Event{
		Type: EvError,
		Err:  err,
	}
}
