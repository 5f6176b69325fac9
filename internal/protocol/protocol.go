// Package protocol defines the JSON bodies exchanged with the /chat endpoint.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ChatPath is the endpoint every turn is posted to
const ChatPath = "/chat"

// WSPath is the WebSocket variant of the chat endpoint
const WSPath = ChatPath + "/ws"

// ChatRequest is the body of one turn
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Response is the body the server answers with. Exactly one field is set.
type Response struct {
	Structured any    `json:"structured,omitempty"`
	Reply      string `json:"reply,omitempty"`
}

// ErrorResponse is returned with non-2xx statuses
type ErrorResponse struct {
	Error string `json:"error"`
}

// Structured is the decoded "structured" object of a response. Fields that
// were missing or had the wrong JSON type are left empty.
type Structured struct {
	Question    string
	Options     []string
	Diagnosis   string
	Explanation string
	Resources   []string
}

// Payload is a decoded response body
type Payload struct {
	Structured *Structured
	Reply      string
}

// DecodeError reports a response body that is not a JSON object.
type DecodeError struct {
	Body []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode parses a response body. Only a body that is not a JSON object is an
// error; unknown or mistyped fields are ignored field by field.
func Decode(body []byte) (Payload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return Payload{}, &DecodeError{Body: body, Err: err}
	}
	if top == nil {
		return Payload{}, &DecodeError{Body: body, Err: fmt.Errorf("response is not a JSON object")}
	}

	p := Payload{Reply: stringField(top["reply"])}

	raw, ok := top["structured"]
	if !ok {
		return p, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return p, nil
	}

	p.Structured = &Structured{
		Question:    stringField(obj["question"]),
		Options:     stringList(obj["options"]),
		Diagnosis:   stringField(obj["diagnosis"]),
		Explanation: stringField(obj["explanation"]),
		Resources:   nonEmpty(stringList(obj["resources"])),
	}
	return p, nil
}

// stringField returns raw when it is a JSON string. Numbers, booleans and
// other non-string values count as absent.
func stringField(raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// stringList keeps the string elements of a JSON array, in order. Empty
// strings are kept so option numbering matches the server's array.
func stringList(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var out []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// nonEmpty drops empty strings; a resource link needs a URL.
func nonEmpty(items []string) []string {
	var out []string
	for _, s := range items {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
