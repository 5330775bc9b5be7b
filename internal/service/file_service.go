package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/plan"
	"github.com/Raj-Randive/chatdocs/internal/queue"
	"github.com/Raj-Randive/chatdocs/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrFileTooLarge        = errors.New("file exceeds the plan's size limit")
	ErrUnsupportedFileType = errors.New("only PDF files are supported")
	ErrUploadLimitExceeded = repository.ErrUploadLimitExceeded
	ErrInvalidCallback     = errors.New("invalid upload callback")
)

const viewURLExpiry = time.Hour

// ObjectStore is the bucket holding uploaded documents.
type ObjectStore interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// UploadTicket authorizes one direct upload to the bucket.
type UploadTicket struct {
	Key       string    `json:"key"`
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// UploadCallback is delivered by the upload service once an object is stored.
type UploadCallback struct {
	Metadata struct {
		UserID string `json:"userId" validate:"required"`
	} `json:"metadata"`
	File struct {
		Key  string `json:"key" validate:"required"`
		Name string `json:"name" validate:"required"`
		URL  string `json:"url" validate:"required,url"`
	} `json:"file"`
}

// FileView is a file plus a short-lived link to its bytes.
type FileView struct {
	model.File
	ViewURL string `json:"viewUrl,omitempty"`
}

type FileService interface {
	PrepareUpload(ctx context.Context, userID, name string, sizeBytes int64) (*UploadTicket, error)
	// CompleteUpload records the uploaded file. Repeated deliveries of the same
	// key return the stored file with created=false and schedule nothing.
	CompleteUpload(ctx context.Context, cb UploadCallback) (file *model.File, created bool, err error)
	ListFiles(ctx context.Context, userID string) ([]model.File, error)
	GetFile(ctx context.Context, userID, fileID string) (*FileView, error)
	GetFileByKey(ctx context.Context, userID, key string) (*model.File, error)
	// GetUploadStatus reports PENDING for files the callback has not created yet.
	GetUploadStatus(ctx context.Context, userID, fileID string) (model.UploadStatus, error)
	DeleteFile(ctx context.Context, userID, fileID string) error
}

type fileService struct {
	fileRepo   repository.FileRepository
	userRepo   repository.UserRepository
	usageRepo  repository.UsageRepository
	vectorRepo repository.VectorRepository
	store      ObjectStore
	enqueuer   queue.Enqueuer
	plans      plan.Table
	uploadTTL  time.Duration
	now        func() time.Time
	logger     zerolog.Logger
}

func NewFileService(
	fileRepo repository.FileRepository,
	userRepo repository.UserRepository,
	usageRepo repository.UsageRepository,
	vectorRepo repository.VectorRepository,
	store ObjectStore,
	enqueuer queue.Enqueuer,
	plans plan.Table,
	uploadTTL time.Duration,
	logger zerolog.Logger,
) FileService {
	return &fileService{
		fileRepo:   fileRepo,
		userRepo:   userRepo,
		usageRepo:  usageRepo,
		vectorRepo: vectorRepo,
		store:      store,
		enqueuer:   enqueuer,
		plans:      plans,
		uploadTTL:  uploadTTL,
		now:        time.Now,
		logger:     logger.With().Str("service", "FileService").Logger(),
	}
}

func (s *fileService) PrepareUpload(ctx context.Context, userID, name string, sizeBytes int64) (*UploadTicket, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if !strings.EqualFold(path.Ext(name), ".pdf") {
		return nil, ErrUnsupportedFileType
	}
	u, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	now := s.now()
	sub := s.plans.Resolve(u, now)
	if sizeBytes > sub.MaxFileSizeBytes() {
		return nil, ErrFileTooLarge
	}

	start, end := repository.MonthWindow(now)
	if err := s.usageRepo.ReserveUpload(ctx, userID, start, end, sub.Quota); err != nil {
		if errors.Is(err, repository.ErrUploadLimitExceeded) {
			s.logger.Info().Str("user_id", userID).Str("plan", sub.Name).Msg("Monthly upload quota reached")
		}
		return nil, err
	}

	key := fmt.Sprintf("uploads/%s/%s.pdf", userID, uuid.NewString())
	url, err := s.store.PresignPut(ctx, key, "application/pdf", s.uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("presigning upload: %w", err)
	}
	return &UploadTicket{Key: key, UploadURL: url, ExpiresAt: now.Add(s.uploadTTL)}, nil
}

func (s *fileService) CompleteUpload(ctx context.Context, cb UploadCallback) (*model.File, bool, error) {
	userID := cb.Metadata.UserID
	if userID == "" || cb.File.Key == "" {
		return nil, false, ErrInvalidCallback
	}
	log := s.logger.With().Str("user_id", userID).Str("key", cb.File.Key).Logger()

	file, created, err := s.fileRepo.CreateIfAbsent(ctx, &model.File{
		Key:          cb.File.Key,
		Name:         cb.File.Name,
		UserID:       userID,
		URL:          cb.File.URL,
		UploadStatus: model.UploadStatusProcessing,
	})
	if err != nil {
		return nil, false, fmt.Errorf("recording upload: %w", err)
	}
	if !created {
		log.Info().Str("file_id", file.ID).Msg("Duplicate upload callback; ingestion already scheduled")
		return file, false, nil
	}

	if err := s.enqueuer.Enqueue(ctx, model.IngestionJob{FileID: file.ID}); err != nil {
		log.Error().Err(err).Str("file_id", file.ID).Msg("Failed to schedule ingestion")
		// A redelivery would be treated as a duplicate, so settle the file now.
		detail := repository.StatusDetails{FailureDetail: "could not schedule ingestion"}
		if uerr := s.fileRepo.UpdateStatus(ctx, file.ID, model.UploadStatusFailed, detail); uerr != nil {
			log.Error().Err(uerr).Msg("Failed to mark unscheduled file as failed")
		}
		return nil, false, fmt.Errorf("scheduling ingestion: %w", err)
	}
	log.Info().Str("file_id", file.ID).Msg("Upload recorded; ingestion scheduled")
	return file, true, nil
}

func (s *fileService) ListFiles(ctx context.Context, userID string) ([]model.File, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.fileRepo.ListUserFiles(ctx, userID)
}

func (s *fileService) GetFile(ctx context.Context, userID, fileID string) (*FileView, error) {
	f, err := ownedFile(ctx, s.fileRepo, userID, fileID)
	if err != nil {
		return nil, err
	}
	view := &FileView{File: *f}
	url, err := s.store.PresignGet(ctx, f.Key, viewURLExpiry)
	if err != nil {
		s.logger.Warn().Err(err).Str("file_id", f.ID).Msg("Failed to presign view url; falling back to upload url")
		url = f.URL
	}
	view.ViewURL = url
	return view, nil
}

func (s *fileService) GetFileByKey(ctx context.Context, userID, key string) (*model.File, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	f, err := s.fileRepo.GetUserFileByKey(ctx, key, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *fileService) GetUploadStatus(ctx context.Context, userID, fileID string) (model.UploadStatus, error) {
	f, err := ownedFile(ctx, s.fileRepo, userID, fileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return model.UploadStatusPending, nil
		}
		return "", err
	}
	return f.UploadStatus, nil
}

// DeleteFile removes the vectors, then the row (messages cascade), then the
// stored object. Object removal is best effort.
func (s *fileService) DeleteFile(ctx context.Context, userID, fileID string) error {
	f, err := ownedFile(ctx, s.fileRepo, userID, fileID)
	if err != nil {
		return err
	}
	if err := s.vectorRepo.DeleteNamespace(ctx, f.ID); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	if err := s.fileRepo.DeleteUserFile(ctx, f.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFileNotFound
		}
		return fmt.Errorf("deleting file: %w", err)
	}
	if err := s.store.Delete(ctx, f.Key); err != nil {
		s.logger.Warn().Err(err).Str("file_id", f.ID).Str("key", f.Key).Msg("Failed to delete stored object")
	}
	return nil
}
