package process

import (
	"encoding/json"
	"fmt"
)

// displayInstruction is one line of the renderer's stdin protocol.
type displayInstruction struct {
	Command string         `json:"command"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Relay forwards display instructions to the supervised renderer as
// JSON lines on its stdin. Implements the command dispatcher's
// Display interface.
//
// Send is fire-and-forget by contract: a returned error means the
// line never left the agent (renderer down, encode failure), not that
// the renderer acted on it.
type Relay struct {
	manager *Manager
}

// NewRelay creates a relay writing to the given manager's renderer.
func NewRelay(manager *Manager) *Relay {
	return &Relay{manager: manager}
}

// Send encodes one display instruction and writes it to the renderer.
func (r *Relay) Send(command string, payload map[string]any) error {
	line, err := json.Marshal(displayInstruction{
		Command: command,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("encoding display instruction %s: %w", command, err)
	}
	return r.manager.Send(line)
}
