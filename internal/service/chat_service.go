package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Raj-Randive/chatdocs/internal/llm"
	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized   = errors.New("unauthorized access")
	ErrFileNotFound   = errors.New("file not found")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrCursorNotFound = errors.New("cursor not found")
)

const (
	DefaultMessagePageSize = 10
	MaxMessagePageSize     = 100
)

// MessagePage is one page of a file's conversation, newest first.
type MessagePage struct {
	Messages   []model.Message `json:"messages"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

type ChatService interface {
	// SendMessage answers text about fileID, passing every completion chunk to
	// emit as it arrives. The answer is stored only when the completion ends
	// normally.
	SendMessage(ctx context.Context, userID, fileID, text string, emit func(chunk string) error) error
	ListMessages(ctx context.Context, userID, fileID string, limit int, cursor string) (*MessagePage, error)
}

// ChatConfig sizes retrieval and history.
type ChatConfig struct {
	TopK        int
	HistorySize int
}

type chatService struct {
	fileRepo    repository.FileRepository
	messageRepo repository.MessageRepository
	vectorRepo  repository.VectorRepository
	embedder    llm.Embedder
	generator   llm.Generator
	cfg         ChatConfig
	logger      zerolog.Logger
}

func NewChatService(
	fileRepo repository.FileRepository,
	messageRepo repository.MessageRepository,
	vectorRepo repository.VectorRepository,
	embedder llm.Embedder,
	generator llm.Generator,
	cfg ChatConfig,
	logger zerolog.Logger,
) ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 6
	}
	return &chatService{
		fileRepo:    fileRepo,
		messageRepo: messageRepo,
		vectorRepo:  vectorRepo,
		embedder:    embedder,
		generator:   generator,
		cfg:         cfg,
		logger:      logger.With().Str("service", "ChatService").Logger(),
	}
}

// ownedFile returns ErrFileNotFound for malformed ids, missing files and
// files of other users alike.
func ownedFile(ctx context.Context, repo repository.FileRepository, userID, fileID string) (*model.File, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if _, err := uuid.Parse(fileID); err != nil {
		return nil, ErrFileNotFound
	}
	f, err := repo.GetUserFile(ctx, fileID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return f, nil
}

func (s *chatService) SendMessage(ctx context.Context, userID, fileID, text string, emit func(chunk string) error) error {
	if userID == "" {
		return ErrUnauthorized
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	file, err := ownedFile(ctx, s.fileRepo, userID, fileID)
	if err != nil {
		return err
	}
	log := s.logger.With().Str("file_id", file.ID).Str("user_id", userID).Logger()

	if _, err := s.messageRepo.CreateMessage(ctx, file.ID, userID, text, true); err != nil {
		return fmt.Errorf("saving user message: %w", err)
	}

	query, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding question: %w", err)
	}
	passages, err := s.vectorRepo.Search(ctx, file.ID, query, s.cfg.TopK)
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}
	history, err := s.messageRepo.ListRecent(ctx, file.ID, s.cfg.HistorySize)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}

	stream, err := s.generator.Stream(ctx, llm.BuildChatPrompt(history, passages, text))
	if err != nil {
		return fmt.Errorf("starting completion: %w", err)
	}
	defer stream.Close()

	var answer strings.Builder
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error().Err(err).Int("streamed_bytes", answer.Len()).Msg("Completion stream failed")
			return fmt.Errorf("streaming completion: %w", err)
		}
		answer.WriteString(chunk)
		if err := emit(chunk); err != nil {
			log.Warn().Err(err).Msg("Client went away mid-stream; discarding answer")
			return fmt.Errorf("relaying chunk: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.messageRepo.CreateMessage(ctx, file.ID, userID, answer.String(), false); err != nil {
		return fmt.Errorf("saving answer: %w", err)
	}
	log.Debug().Int("passages", len(passages)).Int("history", len(history)).Int("answer_bytes", answer.Len()).Msg("Answered message")
	return nil
}

func (s *chatService) ListMessages(ctx context.Context, userID, fileID string, limit int, cursor string) (*MessagePage, error) {
	if _, err := ownedFile(ctx, s.fileRepo, userID, fileID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultMessagePageSize
	}
	if limit > MaxMessagePageSize {
		limit = MaxMessagePageSize
	}
	if cursor != "" {
		if _, err := uuid.Parse(cursor); err != nil {
			return nil, ErrCursorNotFound
		}
	}

	msgs, err := s.messageRepo.ListPage(ctx, fileID, cursor, limit+1)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCursorNotFound
		}
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	page := &MessagePage{Messages: msgs}
	if len(msgs) > limit {
		page.NextCursor = msgs[limit].ID
		page.Messages = msgs[:limit]
	}
	return page, nil
}
