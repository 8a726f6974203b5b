package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/PabloGalante/graphchat/internal/domain"
	"github.com/PabloGalante/graphchat/internal/observability"
)

const defaultAssistantName = "Assistant"

// Options tune the streamed delivery. Zero delays disable the pauses.
type Options struct {
	AssistantName string
	ChunkDelay    time.Duration
	ThinkDelay    time.Duration

	Classifier *Classifier
	Metrics    *observability.Metrics
}

type Service struct {
	store   domain.TranscriptStore
	catalog domain.Catalog
	opts    Options
	locks   *sessionLocks
	now     func() time.Time
}

func NewService(store domain.TranscriptStore, catalog domain.Catalog, opts Options) *Service {
	if opts.AssistantName == "" {
		opts.AssistantName = defaultAssistantName
	}
	if opts.Classifier == nil {
		opts.Classifier = DefaultClassifier()
	}

	return &Service{
		store:   store,
		catalog: catalog,
		opts:    opts,
		locks:   newSessionLocks(),
		now:     time.Now,
	}
}

type SendMessageInput struct {
	SessionID domain.SessionID
	Text      string
}

// Validate reports the input errors SendMessage would reject, so transports
// can answer them before opening a stream.
func (in SendMessageInput) Validate() error {
	if strings.TrimSpace(string(in.SessionID)) == "" {
		return domain.ErrInvalidSessionID
	}
	if strings.TrimSpace(in.Text) == "" {
		return domain.ErrEmptyMessage
	}
	return nil
}

type SendMessageOutput struct {
	UserMessage  *domain.Message
	AgentMessage *domain.Message
}

// SendMessage streams the assistant reply for in.Text into sink and appends
// the user message and the final assistant message to the transcript.
//
// Turns on the same session are serialized from id assignment to append.
// If the sink fails or ctx ends before the final chunk, nothing is persisted.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput, sink domain.ChunkSink) (*SendMessageOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	rule := s.opts.Classifier.Classify(in.Text)

	ctx, span := observability.Tracer().Start(ctx, "conversation.SendMessage",
		trace.WithAttributes(
			attribute.String("session_id", string(in.SessionID)),
			attribute.String("rule", rule.Name),
		))
	defer span.End()

	log := observability.LoggerFromContext(ctx).With(
		"session_id", in.SessionID,
		"rule", rule.Name,
	)
	log.InfoContext(ctx, "sending message")

	reply, err := rule.Compose(ctx, s.catalog, in.Text)
	if err != nil {
		log.ErrorContext(ctx, "failed to compose reply", "error", err)
		return nil, failSpan(span, err)
	}
	span.SetAttributes(attribute.String("kind", string(reply.Kind)))

	unlock, err := s.locks.lock(ctx, in.SessionID)
	if err != nil {
		return nil, failSpan(span, err)
	}
	defer unlock()

	n, err := s.store.CountMessages(ctx, in.SessionID)
	if err != nil {
		log.ErrorContext(ctx, "failed to count messages", "error", err)
		return nil, failSpan(span, err)
	}

	userMsg := &domain.Message{
		ID:      domain.MessageIDFromSeq(n),
		Content: in.Text,
		Role:    domain.RoleUser,
	}
	agentMsg := &domain.Message{
		ID:   domain.MessageIDFromSeq(n + 1),
		Role: domain.RoleAssistant,
		Name: s.opts.AssistantName,
		Kind: reply.Kind,
	}

	start := s.now()
	if err := s.stream(ctx, sink, agentMsg, reply); err != nil {
		s.opts.Metrics.StreamAborted(ctx, string(reply.Kind))
		log.WarnContext(ctx, "stream aborted", "error", err)
		return nil, failSpan(span, fmt.Errorf("stream aborted: %w", err))
	}

	agentMsg.Content = reply.Content
	if err := s.store.AppendMessages(ctx, in.SessionID, userMsg, agentMsg); err != nil {
		s.opts.Metrics.StreamAborted(ctx, string(reply.Kind))
		log.ErrorContext(ctx, "failed to append messages", "error", err)
		return nil, failSpan(span, err)
	}

	// The exchange is persisted; a consumer that left now only misses the copy.
	if err := s.send(ctx, sink, domain.ChunkOf(agentMsg)); err != nil {
		log.WarnContext(ctx, "final chunk not delivered", "error", err)
	}

	s.opts.Metrics.StreamCompleted(ctx, string(reply.Kind), s.now().Sub(start))
	log.InfoContext(ctx, "send message completed", "message_id", agentMsg.ID, "kind", reply.Kind)

	return &SendMessageOutput{
		UserMessage:  userMsg,
		AgentMessage: agentMsg,
	}, nil
}

// stream emits the envelope chunk, the per-character chunks and the thinking
// pause. It stops at the first sink error or when ctx is done.
func (s *Service) stream(ctx context.Context, sink domain.ChunkSink, msg *domain.Message, reply *Reply) error {
	envelope := domain.ChunkOf(msg)
	envelope.Content = reply.Placeholder
	if err := s.send(ctx, sink, envelope); err != nil {
		return err
	}

	for _, r := range reply.Text {
		chunk := domain.ChunkOf(msg)
		chunk.Content = string(r)
		chunk.Partial = true
		if err := s.send(ctx, sink, chunk); err != nil {
			return err
		}
		if err := sleep(ctx, s.opts.ChunkDelay); err != nil {
			return err
		}
	}

	if reply.Think {
		return sleep(ctx, s.opts.ThinkDelay)
	}
	return nil
}

func (s *Service) send(ctx context.Context, sink domain.ChunkSink, chunk domain.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sink.Send(ctx, chunk); err != nil {
		return err
	}
	s.opts.Metrics.ChunkWritten(ctx, chunk.Partial)
	return nil
}

// GetTranscript returns the session's messages in append order; unknown
// sessions yield an empty slice.
func (s *Service) GetTranscript(ctx context.Context, sessionID domain.SessionID) ([]*domain.Message, error) {
	log := observability.LoggerFromContext(ctx).With("session_id", sessionID)

	msgs, err := s.store.GetMessagesBySession(ctx, sessionID)
	if err != nil {
		log.ErrorContext(ctx, "failed to get messages", "error", err)
		return nil, err
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}

	s.opts.Metrics.TranscriptFetched(ctx)
	log.InfoContext(ctx, "fetched session transcript", "message_count", len(msgs))
	return msgs, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func failSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
