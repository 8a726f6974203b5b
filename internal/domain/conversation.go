package domain

// Message is one entry of a session transcript (user or assistant).
type Message struct {
	ID      MessageID
	Content string
	Role    Role

	// Assistant only
	Name string
	Kind Kind
}

// Chunk is one unit of a streamed reply. Partial chunks carry a single
// character; the last chunk of a reply is the authoritative content.
type Chunk struct {
	ID      MessageID
	Content string
	Role    Role
	Name    string
	Kind    Kind
	Partial bool
}

// ChunkOf builds a non-partial chunk mirroring msg.
func ChunkOf(msg *Message) Chunk {
	return Chunk{
		ID:      msg.ID,
		Content: msg.Content,
		Role:    msg.Role,
		Name:    msg.Name,
		Kind:    msg.Kind,
	}
}
