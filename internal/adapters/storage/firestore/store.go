package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/graphchat/internal/domain"
)

type Store struct {
	client *firestore.Client
}

var _ domain.TranscriptStore = (*Store)(nil)

// NewStore creates a Firestore store.
// Uses the project passed (GRAPHCHAT_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required for Firestore store")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) sessionsCol() *firestore.CollectionRef {
	return s.client.Collection("sessions")
}

func (s *Store) sessionDoc(id domain.SessionID) *firestore.DocumentRef {
	return s.sessionsCol().Doc(string(id))
}

func (s *Store) messagesCol(sessionID domain.SessionID) *firestore.CollectionRef {
	return s.sessionDoc(sessionID).Collection("messages")
}

func (s *Store) messageDoc(sessionID domain.SessionID, msgID domain.MessageID) *firestore.DocumentRef {
	return s.messagesCol(sessionID).Doc(string(msgID))
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

type sessionDoc struct {
	MessageCount int `firestore:"message_count"`
}

type messageDoc struct {
	Seq     int    `firestore:"seq"`
	Content string `firestore:"content"`
	Role    string `firestore:"role"`
	Name    string `firestore:"name"`
	Kind    string `firestore:"type"`
}

func toMessageDoc(seq int, m *domain.Message) messageDoc {
	return messageDoc{
		Seq:     seq,
		Content: m.Content,
		Role:    string(m.Role),
		Name:    m.Name,
		Kind:    string(m.Kind),
	}
}

// ─────────────────────────────────────────
// TranscriptStore implementation
// ─────────────────────────────────────────

// AppendMessages writes the messages and bumps message_count in a single
// transaction, so a transcript never holds half an exchange.
func (s *Store) AppendMessages(ctx context.Context, sessionID domain.SessionID, msgs ...*domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		count, err := readCount(tx.Get(s.sessionDoc(sessionID)))
		if err != nil {
			return err
		}
		if err := domain.CheckSequence(count, msgs); err != nil {
			return err
		}

		for i, m := range msgs {
			if err := tx.Create(s.messageDoc(sessionID, m.ID), toMessageDoc(count+i, m)); err != nil {
				return err
			}
		}
		return tx.Set(s.sessionDoc(sessionID), sessionDoc{MessageCount: count + len(msgs)})
	})
	if err != nil {
		return fmt.Errorf("firestore AppendMessages: %w", err)
	}
	return nil
}

func (s *Store) GetMessagesBySession(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	iter := s.messagesCol(sessionID).OrderBy("seq", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	out := []*domain.Message{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if err == iterator.Done {
				break
			}
			return nil, fmt.Errorf("firestore GetMessagesBySession: %w", err)
		}

		var doc messageDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode messageDoc: %w", err)
		}

		out = append(out, &domain.Message{
			ID:      domain.MessageID(snap.Ref.ID),
			Content: doc.Content,
			Role:    domain.Role(doc.Role),
			Name:    doc.Name,
			Kind:    domain.Kind(doc.Kind),
		})
	}
	return out, nil
}

func (s *Store) CountMessages(ctx context.Context, sessionID domain.SessionID) (int, error) {
	count, err := readCount(s.sessionDoc(sessionID).Get(ctx))
	if err != nil {
		return 0, fmt.Errorf("firestore CountMessages: %w", err)
	}
	return count, nil
}

// readCount treats a missing session document as an empty transcript.
func readCount(snap *firestore.DocumentSnapshot, err error) (int, error) {
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return 0, nil
		}
		return 0, err
	}

	var doc sessionDoc
	if err := snap.DataTo(&doc); err != nil {
		return 0, fmt.Errorf("decode sessionDoc: %w", err)
	}
	return doc.MessageCount, nil
}
