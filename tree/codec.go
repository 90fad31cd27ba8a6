package tree

import (
	"encoding/json"
	"fmt"
)

/*
DecodeError reports a checkpoint payload that was present but could
not be restored into a consistent tree, as opposed to a checkpoint
that was never written. Callers usually train from scratch on absent
checkpoints and investigate decode errors.
*/
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("decoding tree: %s", e.Reason)
	}
	return fmt.Sprintf("decoding tree: %s: %v", e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

/*
Encode serializes the complete training state, counters, configuration
and checkpoint name included, so a later Decode resumes growth exactly
where it stopped. Encoding is deterministic: the same state always
yields the same bytes.
*/
func (t *Tree) Encode() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding tree: %v", err)
	}
	return data, nil
}

/*
Decode restores a tree serialized with Encode. Payloads that do not
parse, or that parse into a tree violating the structural invariants,
are rejected with a *DecodeError carrying the diagnostic.
*/
func Decode(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, &DecodeError{Reason: "unmarshaling", Err: err}
	}
	if err := t.Validate(); err != nil {
		return nil, &DecodeError{Reason: "inconsistent state", Err: err}
	}
	return &t, nil
}
