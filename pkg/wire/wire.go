// Package wire defines the broker message payloads.
//
// Both message kinds are flat JSON objects with exact field names.
// Decoding is strict: unknown fields, trailing data and empty payloads
// are errors, so a schema mismatch between producer and consumer
// surfaces as a decode failure instead of silently dropped fields.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrEmptyPayload marks a message without a payload.
var ErrEmptyPayload = errors.New("empty message payload")

// OperationRequest asks a worker to evaluate one operation.
type OperationRequest struct {
	JobID       string `json:"job_id"`
	OperationID string `json:"operation_id"`
	Request     string `json:"request"`
}

// OperationResult carries the evaluation outcome of one operation.
type OperationResult struct {
	JobID       string `json:"job_id"`
	OperationID string `json:"operation_id"`
	Result      string `json:"result"`
}

// Encode serializes the request payload.
func (r *OperationRequest) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest parses an operation request, rejecting unknown fields.
func DecodeRequest(buf []byte) (*OperationRequest, error) {
	r := new(OperationRequest)
	if err := decodeStrict(buf, r); err != nil {
		return nil, fmt.Errorf("invalid operation request: %w", err)
	}
	return r, nil
}

// Encode serializes the result payload.
func (r *OperationResult) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeResult parses an operation result, rejecting unknown fields.
func DecodeResult(buf []byte) (*OperationResult, error) {
	r := new(OperationResult)
	if err := decodeStrict(buf, r); err != nil {
		return nil, fmt.Errorf("invalid operation result: %w", err)
	}
	return r, nil
}

func decodeStrict(buf []byte, v interface{}) error {
	if len(buf) == 0 {
		return ErrEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Reject trailing garbage after the object.
	if dec.More() {
		return errors.New("trailing data after message")
	}
	return nil
}
