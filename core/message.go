package core

import "fmt"

// Role identifies who authored a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType tags one piece of multi-part message content.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
)

// Part is a single piece of message content. Text parts carry Text, image
// parts carry ImageURL (which may be a data: URL).
type Part struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"imageUrl,omitempty"`
}

func TextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

func ImagePart(url string) Part {
	return Part{Type: PartImage, ImageURL: url}
}

// Message is one turn of a conversation. ToolCalls is only meaningful for
// assistant messages; ToolCallID only for tool messages, where it names the
// call this message is the output of.
type Message struct {
	Role       Role       `json:"role"`
	Parts      []Part     `json:"parts,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
}

func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Parts: []Part{TextPart(text)}}
}

func NewUserMessage(parts ...Part) Message {
	return Message{Role: RoleUser, Parts: parts}
}

func NewUserText(text string) Message {
	return NewUserMessage(TextPart(text))
}

func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{TextPart(text)}}
}

// NewAssistantToolCalls builds an assistant message that requests tool
// invocations. Text may be empty; when it isn't, the message carries both the
// calls and a text part.
func NewAssistantToolCalls(text string, calls ...ToolCall) Message {
	m := Message{Role: RoleAssistant, ToolCalls: calls}
	if text != "" {
		m.Parts = []Part{TextPart(text)}
	}
	return m
}

func NewToolResult(callID, output string) Message {
	if callID == "" {
		panic(fmt.Errorf("tool result with empty call id"))
	}
	return Message{Role: RoleTool, ToolCallID: callID, Parts: []Part{TextPart(output)}}
}

// Text returns the concatenation of the message's text parts.
func (m *Message) Text() string {
	switch len(m.Parts) {
	case 0:
		return ""
	case 1:
		return m.Parts[0].Text
	}

	var out string
	for _, p := range m.Parts {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCall is one tool invocation requested by the model. ID is the stable
// call id, referenced again by the matching tool-result message.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}
