package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/linguakurs/crm-api/internal/models"
	appErrors "github.com/linguakurs/crm-api/pkg/errors"
)

type boardRepository interface {
	ListMessages(ctx context.Context) ([]models.Message, error)
	CreateMessage(ctx context.Context, message *models.Message) error
	ListNotes(ctx context.Context) ([]models.StickyNote, error)
	FindNoteByID(ctx context.Context, id string) (*models.StickyNote, error)
	CreateNote(ctx context.Context, note *models.StickyNote) error
	UpdateNote(ctx context.Context, id, content string) error
	DeleteNote(ctx context.Context, id string) error
}

type boardBroadcaster interface {
	Broadcast(event models.BoardEvent)
}

type boardEventObserver interface {
	RecordBoardEvent(event string)
}

// BoardContentRequest is the payload for board messages and sticky notes.
type BoardContentRequest struct {
	Content string `json:"content" validate:"required"`
}

// BoardService handles the staff notice board: chat messages, sticky notes
// and the realtime feed. Each committed write is broadcast exactly once.
type BoardService struct {
	repo       boardRepository
	feed       boardBroadcaster
	metrics    boardEventObserver
	validator  *validator.Validate
	logger     *zap.Logger
	maxContent int
}

// NewBoardService constructs the board service.
func NewBoardService(repo boardRepository, feed boardBroadcaster, metrics boardEventObserver, validate *validator.Validate, logger *zap.Logger, maxContent int) *BoardService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxContent <= 0 {
		maxContent = 2000
	}
	return &BoardService{repo: repo, feed: feed, metrics: metrics, validator: validate, logger: logger, maxContent: maxContent}
}

func (s *BoardService) checkContent(req BoardContentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "content is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "content is required")
	}
	if len(req.Content) > s.maxContent {
		return appErrors.Clone(appErrors.ErrValidation, "content too long")
	}
	return nil
}

func (s *BoardService) publish(event string, data interface{}) {
	if s.feed != nil {
		s.feed.Broadcast(models.BoardEvent{Event: event, Data: data})
	}
	if s.metrics != nil {
		s.metrics.RecordBoardEvent(event)
	}
}

// ListMessages returns all board messages, oldest first.
func (s *BoardService) ListMessages(ctx context.Context) ([]models.Message, error) {
	messages, err := s.repo.ListMessages(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, nil
}

// CreateMessage appends a chat message and broadcasts it on the feed.
func (s *BoardService) CreateMessage(ctx context.Context, userID string, req BoardContentRequest) (*models.Message, error) {
	if err := s.checkContent(req); err != nil {
		return nil, err
	}
	message := &models.Message{UserID: userID, Content: req.Content}
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create message")
	}
	s.publish(models.EventMessageCreated, message)
	return message, nil
}

// ListNotes returns all sticky notes, newest first.
func (s *BoardService) ListNotes(ctx context.Context) ([]models.StickyNote, error) {
	notes, err := s.repo.ListNotes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	return notes, nil
}

// CreateNote pins a sticky note and broadcasts it on the feed.
func (s *BoardService) CreateNote(ctx context.Context, userID string, req BoardContentRequest) (*models.StickyNote, error) {
	if err := s.checkContent(req); err != nil {
		return nil, err
	}
	note := &models.StickyNote{UserID: userID, Content: req.Content}
	if err := s.repo.CreateNote(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create note")
	}
	s.publish(models.EventNoteCreated, note)
	return note, nil
}

// UpdateNote rewrites a sticky note. Only the author may edit it.
func (s *BoardService) UpdateNote(ctx context.Context, id, userID string, req BoardContentRequest) (*models.StickyNote, error) {
	if err := s.checkContent(req); err != nil {
		return nil, err
	}
	note, err := s.loadOwnedNote(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateNote(ctx, id, req.Content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update note")
	}
	note.Content = req.Content
	s.publish(models.EventNoteUpdated, note)
	return note, nil
}

// DeleteNote removes a sticky note. Only the author may delete it.
func (s *BoardService) DeleteNote(ctx context.Context, id, userID string) error {
	if _, err := s.loadOwnedNote(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.DeleteNote(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete note")
	}
	s.publish(models.EventNoteDeleted, map[string]string{"id": id})
	return nil
}

func (s *BoardService) loadOwnedNote(ctx context.Context, id, userID string) (*models.StickyNote, error) {
	note, err := s.repo.FindNoteByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load note")
	}
	if note.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the author can modify this note")
	}
	return note, nil
}
