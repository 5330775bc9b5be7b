package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/model"
	"github.com/Raj-Randive/chatdocs/internal/plan"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fileFixture struct {
	files    *memFiles
	vectors  *memVectors
	usage    *memUsage
	store    *memStore
	enqueuer *memEnqueuer
	order    []string
	svc      FileService
}

func newFileFixture(users ...*model.User) *fileFixture {
	fx := &fileFixture{
		usage:    &memUsage{},
		enqueuer: &memEnqueuer{},
	}
	fx.files = newMemFiles(&fx.order)
	fx.vectors = &memVectors{log: &fx.order}
	fx.store = &memStore{log: &fx.order}
	if len(users) == 0 {
		users = []*model.User{{ID: "owner", Email: "owner@example.com"}}
	}
	fx.svc = NewFileService(fx.files, newMemUsers(users...), fx.usage, fx.vectors, fx.store, fx.enqueuer, plan.NewTable("price_pro"), 15*time.Minute, zerolog.Nop())
	return fx
}

func callback(userID, key string) UploadCallback {
	var cb UploadCallback
	cb.Metadata.UserID = userID
	cb.File.Key = key
	cb.File.Name = "manual.pdf"
	cb.File.URL = "https://cdn.example/" + key
	return cb
}

func TestCompleteUploadIsIdempotent(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()

	first, created, err := fx.svc.CompleteUpload(ctx, callback("owner", "uploads/owner/k1.pdf"))
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, model.UploadStatusProcessing, first.UploadStatus)

	second, created, err := fx.svc.CompleteUpload(ctx, callback("owner", "uploads/owner/k1.pdf"))
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, first.ID, second.ID)

	require.Len(t, fx.enqueuer.jobs, 1)
	require.Equal(t, first.ID, fx.enqueuer.jobs[0].FileID)
	files, err := fx.svc.ListFiles(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, files, 1)
}

func TestCompleteUploadEnqueueFailureSettlesFile(t *testing.T) {
	fx := newFileFixture()
	fx.enqueuer.err = errors.New("queue down")

	_, _, err := fx.svc.CompleteUpload(context.Background(), callback("owner", "uploads/owner/k2.pdf"))
	require.Error(t, err)

	f, err := fx.files.GetUserFileByKey(context.Background(), "uploads/owner/k2.pdf", "owner")
	require.NoError(t, err)
	require.Equal(t, model.UploadStatusFailed, f.UploadStatus)
}

func TestCompleteUploadRejectsIncompleteCallback(t *testing.T) {
	fx := newFileFixture()
	_, _, err := fx.svc.CompleteUpload(context.Background(), callback("", "k"))
	require.ErrorIs(t, err, ErrInvalidCallback)
}

func TestPrepareUpload(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()

	ticket, err := fx.svc.PrepareUpload(ctx, "owner", "Manual.PDF", 1<<20)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ticket.Key, "uploads/owner/"))
	require.True(t, strings.HasSuffix(ticket.Key, ".pdf"))
	require.Contains(t, ticket.UploadURL, ticket.Key)

	_, err = fx.svc.PrepareUpload(ctx, "owner", "notes.docx", 10)
	require.ErrorIs(t, err, ErrUnsupportedFileType)

	// Free tier allows 4 MB.
	_, err = fx.svc.PrepareUpload(ctx, "owner", "big.pdf", 5<<20)
	require.ErrorIs(t, err, ErrFileTooLarge)

	_, err = fx.svc.PrepareUpload(ctx, "", "a.pdf", 10)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestPrepareUploadMonthlyQuota(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()
	free := plan.NewTable("").Free()

	for i := 0; i < free.Quota; i++ {
		_, err := fx.svc.PrepareUpload(ctx, "owner", "a.pdf", 10)
		require.NoError(t, err)
	}
	_, err := fx.svc.PrepareUpload(ctx, "owner", "a.pdf", 10)
	require.ErrorIs(t, err, ErrUploadLimitExceeded)
}

func TestPrepareUploadProLimits(t *testing.T) {
	price := "price_pro"
	end := time.Now().Add(72 * time.Hour)
	fx := newFileFixture(&model.User{ID: "owner", StripePriceID: &price, StripeCurrentPeriodEnd: &end})

	_, err := fx.svc.PrepareUpload(context.Background(), "owner", "big.pdf", 10<<20)
	require.NoError(t, err)
}

func TestGetUploadStatus(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()

	status, err := fx.svc.GetUploadStatus(ctx, "owner", uuid.NewString())
	require.NoError(t, err)
	require.Equal(t, model.UploadStatusPending, status)

	f, _, err := fx.svc.CompleteUpload(ctx, callback("owner", "uploads/owner/k3.pdf"))
	require.NoError(t, err)
	status, err = fx.svc.GetUploadStatus(ctx, "owner", f.ID)
	require.NoError(t, err)
	require.Equal(t, model.UploadStatusProcessing, status)
}

func TestGetFileIncludesViewURL(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()
	f, _, err := fx.svc.CompleteUpload(ctx, callback("owner", "uploads/owner/k4.pdf"))
	require.NoError(t, err)

	view, err := fx.svc.GetFile(ctx, "owner", f.ID)
	require.NoError(t, err)
	require.Equal(t, "https://bucket.example/uploads/owner/k4.pdf?get", view.ViewURL)

	fx.store.getErr = errors.New("signer broken")
	view, err = fx.svc.GetFile(ctx, "owner", f.ID)
	require.NoError(t, err)
	require.Equal(t, f.URL, view.ViewURL)

	_, err = fx.svc.GetFile(ctx, "intruder", f.ID)
	require.ErrorIs(t, err, ErrFileNotFound)

	byKey, err := fx.svc.GetFileByKey(ctx, "owner", "uploads/owner/k4.pdf")
	require.NoError(t, err)
	require.Equal(t, f.ID, byKey.ID)
	_, err = fx.svc.GetFileByKey(ctx, "intruder", "uploads/owner/k4.pdf")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestDeleteFileRemovesNamespaceFirst(t *testing.T) {
	fx := newFileFixture()
	ctx := context.Background()
	f, _, err := fx.svc.CompleteUpload(ctx, callback("owner", "uploads/owner/k5.pdf"))
	require.NoError(t, err)

	require.ErrorIs(t, fx.svc.DeleteFile(ctx, "intruder", f.ID), ErrFileNotFound)
	require.Empty(t, fx.order)

	require.NoError(t, fx.svc.DeleteFile(ctx, "owner", f.ID))
	require.Equal(t, []string{"vectors", "row", "object"}, fx.order)
	require.Equal(t, []string{f.ID}, fx.vectors.deleted)
	require.Equal(t, []string{"uploads/owner/k5.pdf"}, fx.store.deleted)

	require.ErrorIs(t, fx.svc.DeleteFile(ctx, "owner", f.ID), ErrFileNotFound)
}
