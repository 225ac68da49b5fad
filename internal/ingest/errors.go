package ingest

import "fmt"

// FormatError indicates the input structure could not be parsed.
type FormatError struct {
	Name string
	// Line is the 1-based record number, 0 when not tied to a record.
	Line int
	Err  error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: malformed input at record %d: %v", e.Name, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: malformed input: %v", e.Name, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// EncodingError indicates the text could not be decoded.
type EncodingError struct {
	Name     string
	Encoding string
	// Offset is the byte offset of the first undecodable sequence, -1 if unknown.
	Offset int
	Err    error
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("%s: undecodable text", e.Name)
	if e.Encoding != "" {
		msg += " (" + e.Encoding + ")"
	}
	if e.Offset >= 0 {
		msg += fmt.Sprintf(" at byte %d", e.Offset)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

// EmptyInputError indicates the input produced zero rows or zero columns.
type EmptyInputError struct {
	Name   string
	Reason string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("%s: empty input: %s", e.Name, e.Reason)
}
