package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// doneSentinel is the literal data payload OpenAI-compatible servers emit to
// mark the end of the stream. It is a framing marker, not a terminal event.
const doneSentinel = "[DONE]"

// ProgressEvent reports generation progress as completed steps out of a total.
type ProgressEvent struct {
	Step  int `json:"step"`
	Total int `json:"total"`
}

// ImageData holds one generated image as a base64-encoded payload.
type ImageData struct {
	B64JSON string `json:"b64_json"`
}

// DoneEvent is the terminal success event carrying the generated images.
type DoneEvent struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

type errorEvent struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}

// decodeEvent parses one SSE data payload into its typed event. The kind is
// taken from the SSE event field when present, otherwise inferred from the
// payload shape (some servers omit the event field). Decoding is strict:
// malformed JSON, unknown kinds, unknown fields, and missing required fields
// all return a *ValidationError.
func decodeEvent(eventType string, data []byte) (any, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &ValidationError{Reason: "event is not a JSON object", Err: err}
	}

	kind := eventType
	if kind == "" {
		switch {
		case hasKeys(fields, "step", "total"):
			kind = "progress"
		case hasKeys(fields, "data") || hasKeys(fields, "created"):
			kind = "done"
		case hasKeys(fields, "error"):
			kind = "error"
		}
	}

	switch kind {
	case "progress":
		if !hasKeys(fields, "step", "total") {
			return nil, &ValidationError{Reason: "progress event missing step or total"}
		}
		var evt ProgressEvent
		if err := strictUnmarshal(data, &evt); err != nil {
			return nil, &ValidationError{Reason: "malformed progress event", Err: err}
		}
		return &evt, nil
	case "done":
		if !hasKeys(fields, "created", "data") {
			return nil, &ValidationError{Reason: "done event missing created or data"}
		}
		var evt DoneEvent
		if err := strictUnmarshal(data, &evt); err != nil {
			return nil, &ValidationError{Reason: "malformed done event", Err: err}
		}
		return &evt, nil
	case "error":
		if !hasKeys(fields, "error") {
			return nil, &ValidationError{Reason: "error event missing error body"}
		}
		var evt errorEvent
		if err := strictUnmarshal(data, &evt); err != nil {
			return nil, &ValidationError{Reason: "malformed error event", Err: err}
		}
		return &BackendError{
			Type:    evt.Error.Type,
			Code:    evt.Error.Code,
			Message: evt.Error.Message,
		}, nil
	}

	return nil, &ValidationError{Reason: fmt.Sprintf("unrecognized event shape %s", truncate(data, 50))}
}

func hasKeys(fields map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; !ok {
			return false
		}
	}
	return true
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data after event payload")
	}
	return nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
