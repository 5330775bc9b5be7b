package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/plan"
	"github.com/Raj-Randive/chatdocs/internal/repository"

	"github.com/rs/zerolog"
)

// Fetcher loads the raw bytes of an uploaded document.
type Fetcher interface {
	Fetch(ctx context.Context, key, url string) ([]byte, error)
}

// UserLookup resolves the owner of a file for plan checks.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// Ingestor runs the fetch, extract, quota, embed and index stages for one file.
type Ingestor struct {
	files     repository.FileRepository
	users     UserLookup
	fetcher   Fetcher
	extractor Extractor
	indexer   *Indexer
	plans     plan.Table
	now       func() time.Time
	logger    zerolog.Logger
}

func NewIngestor(
	files repository.FileRepository,
	users UserLookup,
	fetcher Fetcher,
	extractor Extractor,
	indexer *Indexer,
	plans plan.Table,
	logger zerolog.Logger,
) *Ingestor {
	return &Ingestor{
		files:     files,
		users:     users,
		fetcher:   fetcher,
		extractor: extractor,
		indexer:   indexer,
		plans:     plans,
		now:       time.Now,
		logger:    logger.With().Str("service", "ingest").Logger(),
	}
}

// Process ingests fileID. On success the file is SUCCESS with its page count.
// Permanent failures mark the file FAILED before returning; retryable failures
// leave the status alone so the caller can try again or call Fail.
func (in *Ingestor) Process(ctx context.Context, fileID string) error {
	log := in.logger.With().Str("file_id", fileID).Logger()

	file, err := in.files.GetFile(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Deleted before the job ran. Nothing to do.
			log.Warn().Msg("File no longer exists; dropping ingestion job")
			return nil
		}
		return fmt.Errorf("loading file: %w", err)
	}
	if file.UploadStatus.Terminal() {
		log.Info().Str("status", string(file.UploadStatus)).Msg("File already ingested; skipping")
		return nil
	}

	owner, err := in.users.GetUserByID(ctx, file.UserID)
	if err != nil {
		return fmt.Errorf("loading owner %s: %w", file.UserID, err)
	}
	sub := in.plans.Resolve(owner, in.now())

	if err := in.files.UpdateStatus(ctx, fileID, model.UploadStatusProcessing, repository.StatusDetails{}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Msg("File deleted before processing; dropping ingestion job")
			return nil
		}
		return fmt.Errorf("marking processing: %w", err)
	}

	start := in.now()
	pageCount, err := in.run(ctx, file, sub.Plan)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Msg("File deleted during ingestion; dropping ingestion job")
			return in.dropDeleted(ctx, fileID)
		}
		var ie *Error
		if errors.As(err, &ie) && !ie.Retryable() {
			log.Warn().Err(err).Str("failure_kind", string(ie.Kind)).Msg("Ingestion failed permanently")
			if ferr := in.Fail(ctx, fileID, err, pageCount); ferr != nil {
				return errors.Join(err, ferr)
			}
		}
		return err
	}

	pc := pageCount
	if err := in.files.UpdateStatus(ctx, fileID, model.UploadStatusSuccess, repository.StatusDetails{PageCount: &pc}); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Msg("File deleted after indexing; removing its vectors")
			return in.dropDeleted(ctx, fileID)
		}
		return &Error{Kind: KindIndex, Err: fmt.Errorf("marking success: %w", err)}
	}
	log.Info().
		Int("pages", pageCount).
		Str("plan", sub.Name).
		Dur("duration", in.now().Sub(start)).
		Msg("File ingested")
	return nil
}

// dropDeleted clears the namespace of a file whose row is gone. A failure is
// retryable so the vectors do not outlive the file.
func (in *Ingestor) dropDeleted(ctx context.Context, fileID string) error {
	if err := in.indexer.Drop(ctx, fileID); err != nil {
		return &Error{Kind: KindIndex, Err: fmt.Errorf("removing vectors of deleted file: %w", err)}
	}
	return nil
}

// run returns the page count it saw, even on failure, when extraction got that far.
func (in *Ingestor) run(ctx context.Context, file *model.File, p plan.Plan) (int, error) {
	data, err := in.fetcher.Fetch(ctx, file.Key, file.URL)
	if err != nil {
		return 0, &Error{Kind: KindFetch, Err: err}
	}

	pages, err := in.extractor.Extract(data)
	if err != nil {
		return 0, &Error{Kind: KindParse, Err: err}
	}
	if len(pages) == 0 {
		return 0, newError(KindParse, "document has no pages")
	}
	if p.ExceedsPages(len(pages)) {
		return len(pages), newError(KindQuota, "%d pages exceeds the %s limit of %d", len(pages), p.Name, p.PagesPerPDF)
	}

	if _, err := in.indexer.Index(ctx, file.ID, pages); err != nil {
		return len(pages), err
	}
	return len(pages), nil
}

// Fail marks fileID FAILED with the kind and message of cause.
func (in *Ingestor) Fail(ctx context.Context, fileID string, cause error, pageCount int) error {
	details := repository.StatusDetails{FailureDetail: cause.Error()}
	if kind, ok := KindOf(cause); ok {
		details.FailureKind = string(kind)
	}
	if pageCount > 0 {
		details.PageCount = &pageCount
	}
	if err := in.files.UpdateStatus(ctx, fileID, model.UploadStatusFailed, details); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("marking file %s failed: %w", fileID, err)
	}
	return nil
}
