// Package protocol decodes the job event stream: one JSON object per frame,
// discriminated by its "type" field.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"forensicwatch/internal/model"
)

// Wire type tags.
const (
	TypeStageUpdate = "stage_update"
	TypeProgress    = "progress"
	TypeResult      = "result"
	TypeError       = "error"
)

// Message is one decoded frame. The concrete type is one of StageUpdate,
// Progress, Result, Error or Unknown.
type Message interface {
	Type() string
	isMessage()
}

// StageUpdate asserts the lifecycle state of a stage.
type StageUpdate struct {
	Stage     model.StageID
	Status    *model.StageStatus
	Progress  *int
	StartTime *time.Time
	EndTime   *time.Time
	Message   string
}

// Progress carries a progress percentage for a stage and nothing else.
type Progress struct {
	Stage    model.StageID
	Progress int
}

// Result carries the final analysis payload.
type Result struct {
	Results model.Results
}

// Error reports a server-side processing error.
type Error struct {
	Message string
}

// Unknown is any frame with a type this client does not recognise.
type Unknown struct {
	Kind    string
	Message string
	Raw     []byte
}

func (StageUpdate) Type() string { return TypeStageUpdate }
func (Progress) Type() string    { return TypeProgress }
func (Result) Type() string      { return TypeResult }
func (Error) Type() string       { return TypeError }
func (u Unknown) Type() string   { return u.Kind }

func (StageUpdate) isMessage() {}
func (Progress) isMessage()    {}
func (Result) isMessage()      {}
func (Error) isMessage()       {}
func (Unknown) isMessage()     {}

// Update converts the frame into a partial stage update. Absent fields are
// left nil so they do not overwrite what the store already holds.
func (m StageUpdate) Update() model.StageUpdate {
	return model.StageUpdate{
		Status:    m.Status,
		Progress:  m.Progress,
		StartTime: m.StartTime,
		EndTime:   m.EndTime,
	}
}

// Summary is the event log line for the update.
func (m StageUpdate) Summary() string {
	if m.Message != "" {
		return m.Message
	}
	if m.Status == nil {
		return fmt.Sprintf("%s updated", m.Stage)
	}
	return fmt.Sprintf("%s %s", m.Stage, *m.Status)
}

// Text is the event log line for an unrecognised frame: its message when it
// has one, the raw frame otherwise.
func (u Unknown) Text() string {
	if u.Message != "" {
		return u.Message
	}
	return string(u.Raw)
}

// DecodeError is returned for frames that are not valid protocol messages.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode frame: %s: %v", e.Reason, e.Err)
	}
	return "decode frame: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type envelope struct {
	Type      string          `json:"type"`
	Stage     string          `json:"stage"`
	Status    string          `json:"status"`
	Progress  *float64        `json:"progress"`
	StartTime Timestamp       `json:"startTime"`
	EndTime   Timestamp       `json:"endTime"`
	Message   string          `json:"message"`
	Results   json.RawMessage `json:"results"`
}

// Decode parses one frame. Only the four known tags are held to a field
// schema; any other object becomes Unknown whatever its fields hold.
func Decode(frame []byte) (Message, error) {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &DecodeError{Reason: "frame is not a JSON object"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}
	var kind string
	if raw, ok := fields["type"]; ok {
		// A non-string tag cannot name a known type.
		_ = json.Unmarshal(raw, &kind)
	}

	switch kind {
	case TypeStageUpdate, TypeProgress, TypeResult, TypeError:
		return decodeKnown(kind, trimmed)
	default:
		u := Unknown{Kind: kind, Raw: append([]byte(nil), trimmed...)}
		if raw, ok := fields["message"]; ok {
			_ = json.Unmarshal(raw, &u.Message)
		}
		return u, nil
	}
}

func decodeKnown(kind string, frame []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, &DecodeError{Reason: "invalid JSON", Err: err}
	}

	switch kind {
	case TypeStageUpdate:
		if env.Stage == "" {
			return nil, &DecodeError{Reason: "stage_update without stage"}
		}
		m := StageUpdate{
			Stage:     model.StageID(env.Stage),
			Progress:  percent(env.Progress),
			StartTime: env.StartTime.Ptr(),
			EndTime:   env.EndTime.Ptr(),
			Message:   env.Message,
		}
		if env.Status != "" {
			st := model.StageStatus(env.Status)
			m.Status = &st
		}
		return m, nil

	case TypeProgress:
		if env.Stage == "" {
			return nil, &DecodeError{Reason: "progress without stage"}
		}
		p := percent(env.Progress)
		if p == nil {
			return nil, &DecodeError{Reason: "progress without value"}
		}
		return Progress{Stage: model.StageID(env.Stage), Progress: *p}, nil

	case TypeResult:
		var results model.Results
		if len(env.Results) > 0 && !bytes.Equal(env.Results, []byte("null")) {
			results = append(model.Results(nil), env.Results...)
		}
		return Result{Results: results}, nil

	default:
		return Error{Message: env.Message}, nil
	}
}

func percent(v *float64) *int {
	if v == nil || math.IsNaN(*v) {
		return nil
	}
	p := int(math.Round(min(max(*v, 0), 100)))
	return &p
}
