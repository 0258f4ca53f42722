package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/miskyy7507/vibezone/internal/apperr"
	"github.com/miskyy7507/vibezone/internal/media/sniffer"
	"github.com/miskyy7507/vibezone/internal/security"
	"github.com/miskyy7507/vibezone/internal/storage"
)

const noProperFile = "No proper file uploaded."

type UploadService struct {
	store    storage.ImageStore
	maxBytes int64
	log      zerolog.Logger
}

func NewUploadService(store storage.ImageStore, maxBytes int64, log zerolog.Logger) *UploadService {
	return &UploadService{
		store:    store,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Save validates an uploaded image by its real bytes and stores it under a
// random name derived from the form field. It returns the stored filename.
func (s *UploadService) Save(ctx context.Context, field string, header *multipart.FileHeader) (string, error) {
	if header == nil {
		return "", apperr.Invalid(field, noProperFile)
	}
	if header.Size > s.maxBytes {
		return "", apperr.Invalid(field, fmt.Sprintf("File cannot be larger than %d bytes.", s.maxBytes))
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	// One byte over the limit is enough to reject without reading everything.
	data, err := io.ReadAll(io.LimitReader(file, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return "", apperr.Invalid(field, noProperFile)
	}
	if int64(len(data)) > s.maxBytes {
		return "", apperr.Invalid(field, fmt.Sprintf("File cannot be larger than %d bytes.", s.maxBytes))
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	result, err := sniffer.DetectHead(head)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return "", apperr.Invalid(field, noProperFile)
		}
		return "", err
	}

	declared := sniffer.MimeTypeFromHTTP(http.Header(header.Header))
	if declared != "" && declared != result.MIME {
		s.log.Debug().Str("declared", declared).Str("actual", result.MIME).Msg("upload content type mismatch")
		return "", apperr.Invalid(field, noProperFile)
	}

	suffix, err := security.RandomHex(16)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s.%s", field, suffix, result.Extension())

	if err := s.store.Put(ctx, name, result.MIME, data); err != nil {
		return "", err
	}
	return name, nil
}

// Remove deletes a stored image. Failures are logged only; an orphaned file
// is collected later by the purge job.
func (s *UploadService) Remove(ctx context.Context, name string) {
	if name == "" {
		return
	}
	if err := s.store.Remove(ctx, name); err != nil {
		s.log.Warn().Err(err).Str("image", name).Msg("remove image failed")
	}
}

func (s *UploadService) Open(ctx context.Context, name string) (storage.Object, error) {
	obj, err := s.store.Open(ctx, name)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return storage.Object{}, fmt.Errorf("%w: image %s", apperr.ErrNotFound, name)
	}
	return obj, err
}
