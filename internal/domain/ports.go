package domain

import "context"

// TranscriptStore defines transcript persistence.
//
// AppendMessages applies all msgs or none. The first message's id must equal
// the current transcript length, otherwise ErrSequenceConflict is returned.
type TranscriptStore interface {
	AppendMessages(ctx context.Context, sessionID SessionID, msgs ...*Message) error
	GetMessagesBySession(ctx context.Context, sessionID SessionID) ([]*Message, error)
	CountMessages(ctx context.Context, sessionID SessionID) (int, error)
}

// Catalog is the read-only source of workflow templates and node metadata.
type Catalog interface {
	WorkflowTemplates(ctx context.Context) ([]WorkflowTemplate, error)
	SearchNodes(ctx context.Context, query string) (*NodeSearchPayload, error)
}

// ChunkSink receives the chunks of one streamed reply, in order.
// An error means the consumer is gone and emission must stop.
type ChunkSink interface {
	Send(ctx context.Context, chunk Chunk) error
}

// ChunkSinkFunc adapts a function to ChunkSink.
type ChunkSinkFunc func(ctx context.Context, chunk Chunk) error

func (f ChunkSinkFunc) Send(ctx context.Context, chunk Chunk) error {
	return f(ctx, chunk)
}
