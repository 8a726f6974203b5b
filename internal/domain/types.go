package domain

import (
	"errors"
	"fmt"
	"strconv"
)

type SessionID string
type MessageID string

// MessageIDFromSeq renders a per-session sequence number as a message id.
func MessageIDFromSeq(seq int) MessageID {
	return MessageID(strconv.Itoa(seq))
}

// Seq parses the sequence number back out of a message id.
func (id MessageID) Seq() (int, error) {
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return 0, errors.New("message id is not a sequence number")
	}
	return n, nil
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "ai"
)

// Kind tells a consumer how to interpret an assistant message's content.
type Kind string

const (
	KindPlainMessage   Kind = "message"         // content is literal text or an options payload
	KindWorkflowOption Kind = "workflow_option" // content is an OptionsPayload
	KindNodeSearch     Kind = "node_search"     // content is a NodeSearchPayload
)

var (
	ErrInvalidSessionID = errors.New("session_id is required")
	ErrEmptyMessage     = errors.New("message is required")

	// ErrSequenceConflict is returned by a TranscriptStore when the first id of
	// an append does not match the current length of the transcript.
	ErrSequenceConflict = errors.New("transcript sequence conflict")
)

// CheckSequence verifies msgs continue a transcript of length n with
// consecutive ids.
func CheckSequence(n int, msgs []*Message) error {
	for i, m := range msgs {
		seq, err := m.ID.Seq()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSequenceConflict, err)
		}
		if seq != n+i {
			return fmt.Errorf("%w: got id %s, want %d", ErrSequenceConflict, m.ID, n+i)
		}
	}
	return nil
}
