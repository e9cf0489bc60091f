package codex

import (
	"encoding/json"
	"strings"

	"codexchat/core"
)

// Event types from the codex gateway
const (
	etCreated    = "response.created"
	etInProgress = "response.in_progress"
	etItemAdded  = "response.output_item.added"
	etItemDone   = "response.output_item.done"
	etTextDelta  = "response.output_text.delta"
	etTextDone   = "response.output_text.done"
	etArgsDelta  = "response.function_call_arguments.delta"
	etArgsDone   = "response.function_call_arguments.done"
	etCompleted  = "response.completed"
	etFailed     = "response.failed"
	etError      = "error"
)

// Item type field values
const (
	itfMessage      = "message"
	itfFunctionCall = "function_call"
)

// eventRaw is decoded once at the parser boundary; everything downstream
// switches on Type, so a new gateway event type shows up in exactly one place.
type eventRaw struct {
	Type     string      `json:"type"`
	Item     itemRaw     `json:"item"`
	ItemID   string      `json:"item_id"`
	CallID   string      `json:"call_id"`
	Delta    string      `json:"delta"`
	Response responseRaw `json:"response"`
	Message  string      `json:"message"`
}

type itemRaw struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type responseRaw struct {
	Model string   `json:"model"`
	Usage usageRaw `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type usageRaw struct {
	Input        int64 `json:"input_tokens"`
	InputDetails struct {
		Cached int64 `json:"cached_tokens"`
	} `json:"input_tokens_details"`
	Output int64 `json:"output_tokens"`
	Total  int64 `json:"total_tokens"`
}

type assemblerState int

const (
	asmIdle assemblerState = iota
	asmAccumulating
	asmCompleted
	asmErrored
)

// callAccum collects the argument fragments of one tool call. Entries live
// exactly as long as the response they belong to.
type callAccum struct {
	name      string
	args      strings.Builder
	finalized bool
}

// assembler reduces decoded gateway events into incremental core events and,
// at the end, the aggregated response. Argument-delta events only carry the
// ephemeral item id, so the itemCall table maps those back to the stable call
// id registered when the item was added. Neither table outlives the response.
type assembler struct {
	state    assemblerState
	text     strings.Builder
	calls    map[string]*callAccum // call_id -> accumulator
	order    []string              // call ids in arrival order
	itemCall map[string]string     // item_id -> call_id
}

func newAssembler() *assembler {
	return &assembler{
		calls:    make(map[string]*callAccum),
		itemCall: make(map[string]string),
	}
}

func (a *assembler) completed() bool {
	return a.state == asmCompleted
}

// apply reduces one SSE data payload and returns the events it surfaces.
// Undecodable payloads and unknown event types are skipped so a protocol
// addition never fails an otherwise healthy response. A returned error
// (always a *ProtocolError here) is terminal for the whole call.
func (a *assembler) apply(payload []byte) ([]core.Event, error) {
	// terminal states absorb anything still in flight
	if a.state == asmCompleted || a.state == asmErrored {
		return nil, nil
	}

	var ev eventRaw
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, nil
	}

	if a.state == asmIdle {
		a.state = asmAccumulating
	}

	switch ev.Type {
	case etCreated, etInProgress, etTextDone, etArgsDone:
		// bookkeeping events with nothing to surface

	case etTextDelta:
		a.text.WriteString(ev.Delta)
		return []core.Event{core.NewEvDelta(ev.Delta)}, nil

	case etItemAdded:
		if ev.Item.Type != itfFunctionCall {
			return nil, nil
		}
		callID := a.register(ev.Item)
		return []core.Event{core.NewEvToolCallBegin(callID, ev.Item.Name)}, nil

	case etArgsDelta:
		// the event's own call_id wins; the resolution table covers the
		// common case where only the item id is present
		callID := ev.CallID
		if callID == "" {
			callID = a.itemCall[ev.ItemID]
		}
		if callID == "" {
			// no identity to merge on: the fragment belongs to an item we
			// never saw added, so there is nothing downstream could do
			return nil, nil
		}

		acc := a.calls[callID]
		if acc == nil {
			acc = &callAccum{}
			a.calls[callID] = acc
			a.order = append(a.order, callID)
		}
		acc.args.WriteString(ev.Delta)
		return []core.Event{core.NewEvToolCallDelta(callID, ev.Delta)}, nil

	case etItemDone:
		if ev.Item.Type != itfFunctionCall {
			return nil, nil
		}
		callID := a.register(ev.Item)
		acc := a.calls[callID]
		if ev.Item.Arguments != "" {
			// the done item carries the authoritative full arguments
			acc.args.Reset()
			acc.args.WriteString(ev.Item.Arguments)
		}
		acc.finalized = true
		return []core.Event{core.NewEvToolCall(a.call(callID))}, nil

	case etCompleted:
		a.state = asmCompleted

		// a call that started is always surfaced, even when its own done
		// marker never arrived
		var events []core.Event
		for _, callID := range a.order {
			if acc := a.calls[callID]; !acc.finalized {
				acc.finalized = true
				events = append(events, core.NewEvToolCall(a.call(callID)))
			}
		}

		resp := core.Response{
			Role:  core.RoleAssistant,
			Model: ev.Response.Model,
			Text:  a.text.String(),
			Usage: core.Usage{
				Input:  ev.Response.Usage.Input,
				Cached: ev.Response.Usage.InputDetails.Cached,
				Output: ev.Response.Usage.Output,
				Total:  ev.Response.Usage.Total,
			},
		}
		if resp.Usage.Total == 0 {
			resp.Usage.Total = resp.Usage.Input + resp.Usage.Output
		}
		for _, callID := range a.order {
			resp.ToolCalls = append(resp.ToolCalls, a.call(callID))
		}

		return append(events, core.NewEvResp(resp)), nil

	case etFailed:
		a.state = asmErrored
		return nil, &ProtocolError{Message: ev.Response.Error.Message}

	case etError:
		a.state = asmErrored
		msg := ev.Message
		if msg == "" {
			msg = string(payload)
		}
		return nil, &ProtocolError{Message: msg}
	}

	return nil, nil
}

// register records a function-call item in the accumulator and resolution
// tables, returning its stable call id. Items lacking a call_id fall back to
// the item id so the call still surfaces under some identity.
func (a *assembler) register(item itemRaw) string {
	callID := item.CallID
	if callID == "" {
		callID = item.ID
	}

	// an item first seen without a call_id was registered under the item id;
	// when the real call id arrives later, migrate that entry rather than
	// opening a second one and stranding its fragments
	if prev, ok := a.itemCall[item.ID]; ok && prev != callID {
		if acc := a.calls[prev]; acc != nil && a.calls[callID] == nil {
			a.calls[callID] = acc
			delete(a.calls, prev)
			for i, id := range a.order {
				if id == prev {
					a.order[i] = callID
				}
			}
		}
	}

	acc := a.calls[callID]
	if acc == nil {
		acc = &callAccum{}
		a.calls[callID] = acc
		a.order = append(a.order, callID)
	}
	if item.Name != "" {
		acc.name = item.Name
	}
	if item.ID != "" {
		a.itemCall[item.ID] = callID
	}

	return callID
}

func (a *assembler) call(callID string) core.ToolCall {
	acc := a.calls[callID]
	return core.ToolCall{
		ID:        callID,
		Name:      acc.name,
		Arguments: acc.args.String(),
	}
}
