package remote

import (
	"encoding/json"
	"io"
)

// Stream yields records one at a time. It is finite and can be read once.
//
//	for s.Next() {
//		rec := s.Record()
//	}
//	if err := s.Err(); err != nil { ... }
type Stream struct {
	op   string
	next func() (Record, bool, error)
	body io.Closer

	cur  Record
	err  error
	done bool
	n    int
}

// newArrayStream decodes a JSON array lazily. The body is closed when the
// array ends, on the first error, or on Close.
func newArrayStream(op string, body io.ReadCloser) *Stream {
	dec := json.NewDecoder(body)
	started := false

	s := &Stream{op: op, body: body}
	s.next = func() (Record, bool, error) {
		if !started {
			started = true
			tok, err := dec.Token()
			if err != nil {
				return nil, false, err
			}
			// libpod sends null for some empty lists
			if tok == nil {
				return nil, false, nil
			}
			if delim, ok := tok.(json.Delim); !ok || delim != '[' {
				return nil, false, &json.UnmarshalTypeError{Value: "object", Type: arrayType}
			}
		}
		if !dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil, false, err
			}
			return nil, false, nil
		}
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}
	return s
}

// newSliceStream yields records that are already decoded.
func newSliceStream(op string, records []Record) *Stream {
	i := 0
	return &Stream{op: op, next: func() (Record, bool, error) {
		if i >= len(records) {
			return nil, false, nil
		}
		rec := records[i]
		i++
		return rec, true, nil
	}}
}

// Next advances to the next record. It returns false at the end or on error.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	rec, ok, err := s.next()
	if err != nil {
		s.err = streamError(s.op, err)
	}
	if !ok || err != nil {
		s.finish()
		return false
	}
	s.cur = rec
	s.n++
	return true
}

// Record returns the record Next advanced to.
func (s *Stream) Record() Record {
	return s.cur
}

// Err returns the error that stopped the stream, if any.
func (s *Stream) Err() error {
	return s.err
}

// Count returns how many records have been read so far.
func (s *Stream) Count() int {
	return s.n
}

// Close stops the stream early and releases the response body.
func (s *Stream) Close() error {
	s.finish()
	return nil
}

func (s *Stream) finish() {
	s.done = true
	s.cur = nil
	if s.body != nil {
		s.body.Close()
		s.body = nil
	}
}

// All drains the stream.
func (s *Stream) All() ([]Record, error) {
	var out []Record
	for s.Next() {
		out = append(out, s.Record())
	}
	return out, s.Err()
}

// IDs drains the stream into the --quiet projection.
func (s *Stream) IDs(truncate bool) ([]string, error) {
	var out []string
	for s.Next() {
		out = append(out, QuietID(s.Record(), truncate))
	}
	return out, s.Err()
}
