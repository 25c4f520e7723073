package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/memorybridge/internal/domain/memory"
	"github.com/Strob0t/memorybridge/internal/port/messagequeue"
)

// publish sends an event to the live clients of the workspace and to the
// queue. Failures are logged; memory writes already happened.
func (s *MemoryService) publish(ctx context.Context, workspaceID, subject string, payload any) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastEvent(ctx, workspaceID, subject, payload)
	}
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal memory event", "subject", subject, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, subject, data); err != nil {
		slog.WarnContext(ctx, "publish memory event failed", "subject", subject, "error", err)
	}
}

func (s *MemoryService) publishMessagesAdded(ctx context.Context, user memory.UserMemory, sessionID string, count, dropped int) {
	s.publish(ctx, user.WorkspaceID, messagequeue.SubjectMessagesAdded, messagequeue.MessagesAddedPayload{
		EventID:      uuid.NewString(),
		WorkspaceID:  user.WorkspaceID,
		RemoteUserID: memory.RemoteUserID(user),
		SessionID:    sessionID,
		MessageCount: count,
		Dropped:      dropped,
		OccurredAt:   time.Now().UTC(),
	})
}

func (s *MemoryService) publishGraphIngested(
	ctx context.Context,
	user memory.UserMemory,
	dataType memory.DataType,
	strategy memory.OverflowStrategy,
	originalSize, ingestedSize, chunks int,
) {
	s.publish(ctx, user.WorkspaceID, messagequeue.SubjectGraphIngested, messagequeue.GraphIngestedPayload{
		EventID:          uuid.NewString(),
		WorkspaceID:      user.WorkspaceID,
		RemoteUserID:     memory.RemoteUserID(user),
		DataType:         string(dataType),
		OverflowStrategy: string(strategy),
		OriginalSize:     originalSize,
		IngestedSize:     ingestedSize,
		Chunks:           chunks,
		OccurredAt:       time.Now().UTC(),
	})
}
