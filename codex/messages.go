package codex

import (
	"github.com/google/uuid"

	"codexchat/core"
)

// Item types for gateway requests

type itemType string

const (
	itemTypeMessage    itemType = "message"
	itemTypeToolCall   itemType = "function_call"
	itemTypeToolResult itemType = "function_call_output"
)

type inputItem struct {
	Type itemType `json:"type"`
	// message fields
	ID      string        `json:"id,omitempty"`
	Role    string        `json:"role,omitempty"`
	Content []contentPart `json:"content,omitempty"`
	// tool call fields
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	// tool result fields
	Output string `json:"output,omitempty"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

const (
	callItemPrefix = "fc_"
	itemIDMaxLen   = 64
)

// callItemID derives the wire item id for a tool call from its stable call
// id, so that the same call serialized on a later turn maps to the same item.
func callItemID(callID string) string {
	id := callItemPrefix + callID
	if len(id) > itemIDMaxLen {
		id = id[:itemIDMaxLen]
	}
	return id
}

func newUserItem(parts []core.Part) inputItem {
	content := make([]contentPart, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case core.PartImage:
			content = append(content, contentPart{Type: "input_image", ImageURL: p.ImageURL})
		default:
			content = append(content, contentPart{Type: "input_text", Text: p.Text})
		}
	}

	return inputItem{
		Type:    itemTypeMessage,
		Role:    string(core.RoleUser),
		Content: content,
	}
}

func newAssistantItem(text string) inputItem {
	return inputItem{
		Type:    itemTypeMessage,
		ID:      "msg_" + uuid.NewString(),
		Role:    string(core.RoleAssistant),
		Content: []contentPart{{Type: "output_text", Text: text}},
	}
}

func newToolCallItem(call core.ToolCall) inputItem {
	return inputItem{
		Type:      itemTypeToolCall,
		ID:        callItemID(call.ID),
		CallID:    call.ID,
		Name:      call.Name,
		Arguments: call.Arguments,
	}
}

func newToolResultItem(callID, output string) inputItem {
	return inputItem{
		Type:   itemTypeToolResult,
		CallID: callID,
		Output: output,
	}
}

// translate walks the history once, in order, and produces the instructions
// string plus the gateway input items. The last system message wins; an
// assistant message carrying both tool calls and text emits the call items
// first, so later outputs referencing them always follow their call.
func translate(history []core.Message) (string, []inputItem) {
	var instructions string
	items := make([]inputItem, 0, len(history))

	for _, m := range history {
		switch m.Role {
		case core.RoleSystem:
			instructions = m.Text()
		case core.RoleUser:
			items = append(items, newUserItem(m.Parts))
		case core.RoleAssistant:
			for _, call := range m.ToolCalls {
				items = append(items, newToolCallItem(call))
			}
			if text := m.Text(); text != "" {
				items = append(items, newAssistantItem(text))
			}
		case core.RoleTool:
			items = append(items, newToolResultItem(m.ToolCallID, m.Text()))
		}
	}

	return instructions, items
}
