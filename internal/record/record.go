// Package record defines the hvbridge clipboard wire protocol.
//
// Every clipboard change is exactly one newline-terminated line of UTF-8.
// A line is either a compact JSON record:
//
//	{"type":"text"|"file","content":...,"filename":...,"timestamp":...}\n
//
// or the bare acknowledgement sentinel:
//
//	OK\n
//
// File content travels base64-encoded so binary data is safe inside a JSON
// string. Lines are self-describing and independent — no handshake, no
// length prefix, no version field.
package record

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind identifies what a record carries.
type Kind string

const (
	KindText Kind = "text"
	KindFile Kind = "file"
)

// Ack is the sentinel line acknowledging that a record was applied.
// It is not JSON and is compared after whitespace trimming.
const Ack = "OK"

// Record is one unit of synchronized clipboard content.
type Record struct {
	Kind      Kind   `json:"type"`
	Content   string `json:"content"`
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
}

// NewText creates a text record stamped with the current time.
func NewText(content string) Record {
	return Record{
		Kind:      KindText,
		Content:   content,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// NewFile creates a file record from raw bytes. The content is
// base64-encoded and filename must be non-empty.
func NewFile(filename string, data []byte) Record {
	return Record{
		Kind:      KindFile,
		Content:   base64.StdEncoding.EncodeToString(data),
		Filename:  filename,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// FileBytes returns the decoded payload of a file record.
func (r Record) FileBytes() ([]byte, error) {
	if r.Kind != KindFile {
		return nil, fmt.Errorf("not a file record (type %q)", r.Kind)
	}
	b, err := base64.StdEncoding.DecodeString(r.Content)
	if err != nil {
		return nil, fmt.Errorf("file payload decode: %w", err)
	}
	return b, nil
}

// Encode serialises the record as one compact JSON line including the
// trailing newline.
func (r Record) Encode() ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("record encode: %w", err)
	}
	return append(raw, '\n'), nil
}

// Result classifies a decoded line.
type Result int

const (
	// Empty means the line was blank after trimming; ignore it.
	Empty Result = iota
	// Acknowledged means the line was the Ack sentinel.
	Acknowledged
	// Malformed means the line failed to parse; log and discard it.
	Malformed
	// Received means the line carried a Record.
	Received
)

// Decode classifies one line (with or without its trailing newline).
// A Malformed result never carries an error worth terminating a session
// over — the offending line is simply dropped by callers.
func Decode(line string) (Record, Result) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Record{}, Empty
	}
	if trimmed == Ack {
		return Record{}, Acknowledged
	}
	var r Record
	if err := json.Unmarshal([]byte(trimmed), &r); err != nil {
		return Record{}, Malformed
	}
	return r, Received
}
