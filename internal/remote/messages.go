package remote

import (
	"encoding/json"
	"fmt"
)

// MethodExecuteCommand asks a peer to run a command and reply with a result.
const MethodExecuteCommand = "event::ExecuteCommand"

// Message is the JSON-RPC 2.0 envelope used on the cluster channel.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// ExecuteCommandParams carries a command execution request to a peer.
type ExecuteCommandParams struct {
	CommandType string            `json:"command_type"` // "check_command" or "event_command"
	Command     string            `json:"command"`
	Host        string            `json:"host"`
	Service     string            `json:"service,omitempty"`
	Macros      map[string]string `json:"macros,omitempty"`
}

// NewExecuteCommandMessage wraps params in the RPC envelope.
func NewExecuteCommandMessage(params ExecuteCommandParams) (*Message, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal execute-command params: %w", err)
	}
	return &Message{JSONRPC: "2.0", Method: MethodExecuteCommand, Params: raw}, nil
}

// Encode serializes the message for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a wire message, rejecting anything but version 2.0.
func DecodeMessage(raw []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	if m.JSONRPC != "2.0" {
		return nil, fmt.Errorf("decode message: unsupported version %q", m.JSONRPC)
	}
	return &m, nil
}

// ExecuteCommandFromMessage extracts the typed params from an envelope.
func ExecuteCommandFromMessage(m *Message) (ExecuteCommandParams, error) {
	var p ExecuteCommandParams
	if m.Method != MethodExecuteCommand {
		return p, fmt.Errorf("unexpected method %q", m.Method)
	}
	if err := json.Unmarshal(m.Params, &p); err != nil {
		return p, fmt.Errorf("decode execute-command params: %w", err)
	}
	return p, nil
}
