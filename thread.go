package sibila

import (
	"fmt"
	"strings"
)

// DefaultSeparator joins merged consecutive same-kind message texts.
const DefaultSeparator = "\n\n"

// Thread is an ordered sequence of non-INSTRUCTION messages plus at most one
// INSTRUCTION message held separately. Consecutive INPUT messages are
// merged, and likewise for consecutive OUTPUT messages.
type Thread struct {
	Instruction *Message
	Messages    []Message
	// Separator joins merged consecutive same-kind message texts.
	// Defaults to DefaultSeparator when empty.
	Separator string
}

// NewThread builds a Thread from zero or more messages, applying the
// alternation-merge invariant as each is appended.
func NewThread(messages ...Message) Thread {
	t := Thread{}
	for _, m := range messages {
		t.Append(m)
	}
	return t
}

func (t *Thread) sep() string {
	if t.Separator == "" {
		return DefaultSeparator
	}
	return t.Separator
}

// Append adds a message to the thread, merging it into the last message if
// both share the same non-INSTRUCTION kind. An INSTRUCTION message is held
// separately and overwrites any previous instruction.
func (t *Thread) Append(m Message) {
	if m.Kind == KindInstruction {
		instr := m
		t.Instruction = &instr
		return
	}
	if n := len(t.Messages); n > 0 && t.Messages[n-1].Kind == m.Kind {
		last := &t.Messages[n-1]
		if last.Text == "" {
			last.Text = m.Text
		} else if m.Text != "" {
			last.Text = last.Text + t.sep() + m.Text
		}
		last.Images = append(last.Images, m.Images...)
		return
	}
	t.Messages = append(t.Messages, m)
}

// Clone returns a deep-enough copy of the thread safe to mutate without
// affecting the original. Run clones before splicing in the JSON
// instruction.
func (t Thread) Clone() Thread {
	out := Thread{Separator: t.Separator}
	if t.Instruction != nil {
		instr := *t.Instruction
		instr.Images = append([]ImageRef(nil), t.Instruction.Images...)
		out.Instruction = &instr
	}
	out.Messages = make([]Message, len(t.Messages))
	for i, m := range t.Messages {
		out.Messages[i] = m
		out.Messages[i].Images = append([]ImageRef(nil), m.Images...)
	}
	return out
}

// Validate checks that the thread is non-empty and ends with an INPUT
// message, the precondition for dispatch.
func (t Thread) Validate() error {
	if len(t.Messages) == 0 {
		return fmt.Errorf("sibila: thread is empty")
	}
	last := t.Messages[len(t.Messages)-1]
	if last.Kind != KindInput {
		return fmt.Errorf("sibila: thread must end with an INPUT message, got %s", last.Kind)
	}
	for _, m := range t.Messages {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// AppendToFirstMessage appends text to the first message's body, joined by
// two thread separators, used to splice in the JSON prompt instruction.
func (t *Thread) AppendToFirstMessage(text string) {
	if len(t.Messages) == 0 {
		t.Messages = append(t.Messages, NewInput(text))
		return
	}
	sep := t.sep() + t.sep()
	if t.Messages[0].Text == "" {
		t.Messages[0].Text = text
	} else {
		t.Messages[0].Text = t.Messages[0].Text + sep + text
	}
}

// ContainsToken reports whether any message's lowercased text contains the
// given lowercase token, used by the JSON-instruction bypass check: a
// thread that already names the format keyword skips the injected
// instruction.
func (t Thread) ContainsToken(token string) bool {
	if t.Instruction != nil && strings.Contains(strings.ToLower(t.Instruction.Text), token) {
		return true
	}
	for _, m := range t.Messages {
		if strings.Contains(strings.ToLower(m.Text), token) {
			return true
		}
	}
	return false
}

// Wire serialises the thread to the provider-neutral role-tagged form:
// INSTRUCTION becomes a leading "system" message, INPUT becomes "user",
// OUTPUT becomes "assistant".
func (t Thread) Wire() []WireMessage {
	var out []WireMessage
	if t.Instruction != nil {
		out = append(out, messageToWire(WireRoleSystem, *t.Instruction))
	}
	for _, m := range t.Messages {
		role := WireRoleUser
		if m.Kind == KindOutput {
			role = WireRoleAssistant
		}
		out = append(out, messageToWire(role, m))
	}
	return out
}

func messageToWire(role WireRole, m Message) WireMessage {
	if len(m.Images) == 0 {
		return WireMessage{Role: role, Text: m.Text}
	}
	parts := make([]WireContentPart, 0, len(m.Images)+1)
	if m.Text != "" {
		parts = append(parts, WireContentPart{Type: "text", Text: m.Text})
	}
	for _, img := range m.Images {
		parts = append(parts, WireContentPart{Type: "image_url", ImageURL: img.URL})
	}
	return WireMessage{Role: role, Parts: parts}
}
