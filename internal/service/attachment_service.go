package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"siteexpense/internal/model"
	"siteexpense/internal/policy"
	"siteexpense/internal/repository"
	"siteexpense/internal/storage"
	"siteexpense/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	maxAttachmentCount = 5
	maxAttachmentSize  = 10 << 20 // 10 MiB per file
)

// AttachmentDownload wraps an open blob plus the metadata the handler
// needs for response headers. The caller must Close the reader.
type AttachmentDownload struct {
	Reader       io.ReadCloser
	OriginalName string
	MimeType     string
	Size         int64
}

type AttachmentService interface {
	Upload(ctx context.Context, actor model.Actor, expenseID string, files []*multipart.FileHeader) ([]AttachmentResponse, error)
	Download(ctx context.Context, actor model.Actor, expenseID, attachmentID string) (*AttachmentDownload, error)
	Delete(ctx context.Context, actor model.Actor, expenseID, attachmentID string) error
}

type attachmentService struct {
	expenseRepo    repository.ExpenseRepository
	attachmentRepo repository.AttachmentRepository
	store          storage.BlobStore
	logger         *zap.Logger
}

func NewAttachmentService(
	expenseRepo repository.ExpenseRepository,
	attachmentRepo repository.AttachmentRepository,
	store storage.BlobStore,
	logger *zap.Logger,
) AttachmentService {
	return &attachmentService{
		expenseRepo:    expenseRepo,
		attachmentRepo: attachmentRepo,
		store:          store,
		logger:         logger,
	}
}

func (s *attachmentService) Upload(ctx context.Context, actor model.Actor, expenseID string, files []*multipart.FileHeader) ([]AttachmentResponse, error) {
	expense, err := s.authorizedExpense(ctx, actor, expenseID, true)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, apperror.Validation("No files were provided.")
	}
	// The cap is per upload request, not per expense.
	if len(files) > maxAttachmentCount {
		return nil, apperror.Validation(fmt.Sprintf("You can upload at most %d files at once.", maxAttachmentCount))
	}

	result := make([]AttachmentResponse, 0, len(files))
	for _, header := range files {
		if header.Size > maxAttachmentSize {
			return nil, apperror.Validation(fmt.Sprintf("File %q exceeds the 10MB limit.", header.Filename))
		}

		content, readErr := readMultipartFile(header)
		if readErr != nil {
			return nil, readErr
		}

		key := path.Join(expense.ID.String(), uuid.NewString()+"-"+sanitizeFilename(header.Filename))

		// Bytes land on disk before the metadata row commits; an orphan
		// blob from a failed commit is harmless, a dangling row is not.
		if saveErr := s.store.Save(key, content); saveErr != nil {
			return nil, apperror.Storage("Failed to store the uploaded file.", saveErr)
		}

		attachment := model.Attachment{
			ExpenseID:    expense.ID,
			FilePath:     key,
			OriginalName: header.Filename,
			MimeType:     detectMimeType(header),
			Size:         header.Size,
		}
		if createErr := s.attachmentRepo.Create(ctx, &attachment); createErr != nil {
			if delErr := s.store.Delete(key); delErr != nil {
				s.logger.Warn("failed to remove orphaned blob",
					zap.String("key", key),
					zap.Error(delErr))
			}
			return nil, fmt.Errorf("failed to record attachment: %w", createErr)
		}
		result = append(result, toAttachmentResponse(&attachment))
	}
	return result, nil
}

func (s *attachmentService) Download(ctx context.Context, actor model.Actor, expenseID, attachmentID string) (*AttachmentDownload, error) {
	expense, err := s.authorizedExpense(ctx, actor, expenseID, false)
	if err != nil {
		return nil, err
	}

	attachment, err := s.boundAttachment(ctx, expense.ID, attachmentID)
	if err != nil {
		return nil, err
	}

	file, err := s.store.Open(attachment.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperror.NotFound("The attachment file is no longer available.")
		}
		return nil, apperror.Storage("Failed to open the attachment.", err)
	}

	return &AttachmentDownload{
		Reader:       file,
		OriginalName: attachment.OriginalName,
		MimeType:     attachment.MimeType,
		Size:         attachment.Size,
	}, nil
}

func (s *attachmentService) Delete(ctx context.Context, actor model.Actor, expenseID, attachmentID string) error {
	expense, err := s.authorizedExpense(ctx, actor, expenseID, true)
	if err != nil {
		return err
	}

	attachment, err := s.boundAttachment(ctx, expense.ID, attachmentID)
	if err != nil {
		return err
	}

	if err := s.attachmentRepo.Delete(ctx, attachment.ID); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	// Metadata first, blob best-effort: a leftover blob is invisible to
	// clients once the row is gone.
	if err := s.store.Delete(attachment.FilePath); err != nil {
		s.logger.Warn("failed to delete attachment blob",
			zap.String("key", attachment.FilePath),
			zap.Error(err))
	}
	return nil
}

// authorizedExpense loads the expense and enforces attachment access.
// Write access follows the attachment policy; read access follows the
// general visibility rule.
func (s *attachmentService) authorizedExpense(ctx context.Context, actor model.Actor, expenseID string, write bool) (*model.Expense, error) {
	id, err := uuid.Parse(expenseID)
	if err != nil {
		return nil, apperror.Validation("Invalid expense ID.")
	}
	expense, err := s.expenseRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Expense not found.")
	}
	if write {
		if !policy.CanWriteAttachment(actor, expense.UserID, expense.SiteID) {
			return nil, apperror.Forbidden("You do not have permission to manage attachments on this expense.")
		}
	} else if !policy.CanRead(actor, expense.UserID, expense.SiteID) {
		return nil, apperror.Forbidden("You do not have access to this expense.")
	}
	return expense, nil
}

// boundAttachment loads the attachment and verifies it belongs to the
// expense in the URL. A mismatch reads the same as a missing record.
func (s *attachmentService) boundAttachment(ctx context.Context, expenseID uuid.UUID, attachmentID string) (*model.Attachment, error) {
	id, err := uuid.Parse(attachmentID)
	if err != nil {
		return nil, apperror.Validation("Invalid attachment ID.")
	}
	attachment, err := s.attachmentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "Attachment not found.")
	}
	if attachment.ExpenseID != expenseID {
		return nil, apperror.NotFound("Attachment not found.")
	}
	return attachment, nil
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, apperror.Validation("Failed to read uploaded file " + header.Filename + ".")
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, maxAttachmentSize+1))
	if err != nil {
		return nil, apperror.Storage("Failed to read the uploaded file.", err)
	}
	if len(content) > maxAttachmentSize {
		return nil, apperror.Validation(fmt.Sprintf("File %q exceeds the 10MB limit.", header.Filename))
	}
	return content, nil
}

func detectMimeType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// sanitizeFilename strips directory components and characters that do
// not belong in a storage key.
func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		return "file"
	}
	return name
}
