package frame

import (
	"encoding/json"
	"fmt"
	"time"
)

// Frame type tags. The vocabulary is closed: Decode rejects anything else.
const (
	TypeHandshake = "handshake"
	TypeHeartbeat = "heartbeat"
	TypeOperation = "operation"
	TypeResult    = "result"
	TypeInfo      = "info"
)

// Frame is one decoded message from the worker channel.
// Implementations are exactly: *Handshake, *Heartbeat, *Operation,
// *Result, *Info.
type Frame interface {
	frameType() string
}

// Handshake is the first frame a worker sends on a new channel. Receiving
// it marks the channel as the attached worker.
type Handshake struct {
	Worker  string `json:"worker,omitempty"`
	Version string `json:"version,omitempty"`
}

// Heartbeat is the periodic liveness frame from the attached worker.
type Heartbeat struct {
	SentAt time.Time `json:"sent_at,omitempty"`
}

// Operation is one unit of work sent to the worker. Kind selects the
// timeout policy; Payload is opaque to the bridge.
type Operation struct {
	ID      string          `json:"id"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Result is the worker's answer to a previously transmitted Operation,
// matched back to its caller by ID. On Success the Data field holds the
// outcome; otherwise Error carries the worker's message verbatim.
type Result struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Info is a free-form message from the worker. The bridge never interprets
// it; it is forwarded to the log verbatim.
type Info struct {
	Text     string          `json:"text"`
	Severity string          `json:"severity,omitempty"` // debug | info | warn | error
	Data     json.RawMessage `json:"data,omitempty"`
}

func (*Handshake) frameType() string { return TypeHandshake }
func (*Heartbeat) frameType() string { return TypeHeartbeat }
func (*Operation) frameType() string { return TypeOperation }
func (*Result) frameType() string    { return TypeResult }
func (*Info) frameType() string      { return TypeInfo }

// MalformedError reports a frame that could not be decoded. The dispatch
// layer logs and discards these; they never close the channel.
type MalformedError struct {
	Reason string
	Raw    []byte
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed frame: %s", e.Reason)
}

// envelope is the wire shape shared by every frame: a type tag plus the
// union of all per-type fields.
type envelope struct {
	Type string `json:"type"`

	// handshake
	Worker  string `json:"worker,omitempty"`
	Version string `json:"version,omitempty"`

	// heartbeat
	SentAt time.Time `json:"sent_at,omitempty"`

	// operation / result
	ID      string          `json:"id,omitempty"`
	Kind    string          `json:"kind,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`

	// info
	Text     string `json:"text,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// Decode parses one raw frame from the channel. It returns *MalformedError
// for anything outside the closed vocabulary or missing required fields.
func Decode(raw []byte) (Frame, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &MalformedError{Reason: fmt.Sprintf("invalid json: %v", err), Raw: raw}
	}

	switch env.Type {
	case TypeHandshake:
		return &Handshake{Worker: env.Worker, Version: env.Version}, nil

	case TypeHeartbeat:
		return &Heartbeat{SentAt: env.SentAt}, nil

	case TypeOperation:
		if env.ID == "" {
			return nil, &MalformedError{Reason: "operation missing id", Raw: raw}
		}
		return &Operation{ID: env.ID, Kind: env.Kind, Payload: env.Payload}, nil

	case TypeResult:
		if env.ID == "" {
			return nil, &MalformedError{Reason: "result missing id", Raw: raw}
		}
		if env.Success == nil {
			return nil, &MalformedError{Reason: "result missing success", Raw: raw}
		}
		if !*env.Success && env.Error == "" {
			return nil, &MalformedError{Reason: "result has success=false but no error", Raw: raw}
		}
		return &Result{ID: env.ID, Success: *env.Success, Data: env.Data, Error: env.Error}, nil

	case TypeInfo:
		if env.Text == "" {
			return nil, &MalformedError{Reason: "info missing text", Raw: raw}
		}
		return &Info{Text: env.Text, Severity: env.Severity, Data: env.Data}, nil

	case "":
		return nil, &MalformedError{Reason: "missing type tag", Raw: raw}

	default:
		return nil, &MalformedError{Reason: fmt.Sprintf("unknown type %q", env.Type), Raw: raw}
	}
}

// EncodeOperation serializes an outgoing Operation frame.
func EncodeOperation(op *Operation) ([]byte, error) {
	env := struct {
		Type string `json:"type"`
		Operation
	}{Type: TypeOperation, Operation: *op}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode operation %s: %w", op.ID, err)
	}
	return raw, nil
}
