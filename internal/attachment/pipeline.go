package attachment

import (
	"context"
	"fmt"

	"github.com/matheus3301/matchchat/internal/chat"
	"go.uber.org/zap"
)

// Uploader is the API call that stores an attachment server-side.
type Uploader interface {
	UploadAttachment(ctx context.Context, att chat.PendingAttachment) (chat.AttachmentRef, error)
}

// Picker selects a single file. ok is false when the user canceled.
type Picker interface {
	Pick(ctx context.Context) (file File, ok bool, err error)
}

// File is a picked local file.
type File struct {
	URI      string
	MimeType string
	Name     string
	ByteSize int64
}

// Pipeline validates and uploads attachments. It keeps no messaging state and never
// retries an upload on its own.
type Pipeline struct {
	uploader Uploader
	logger   *zap.Logger
}

// NewPipeline creates a pipeline uploading through u.
func NewPipeline(u Uploader, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{uploader: u, logger: logger}
}

// Stage validates f and returns it as a pending attachment. Oversize files are
// rejected here, before any network call.
func (p *Pipeline) Stage(f File) (chat.PendingAttachment, error) {
	att := chat.PendingAttachment{
		URI:      f.URI,
		Name:     f.Name,
		MimeType: f.MimeType,
		Size:     f.ByteSize,
	}
	if att.MimeType == "" {
		att.MimeType = "application/octet-stream"
	}
	if err := chat.ValidateAttachment(att); err != nil {
		p.logger.Info("attachment rejected", zap.String("name", f.Name), zap.Int64("size", f.ByteSize), zap.Error(err))
		return chat.PendingAttachment{}, err
	}
	return att, nil
}

// StageFromPicker runs the picker and stages the result. ok is false on cancellation.
func (p *Pipeline) StageFromPicker(ctx context.Context, picker Picker) (att chat.PendingAttachment, ok bool, err error) {
	f, ok, err := picker.Pick(ctx)
	if err != nil {
		return chat.PendingAttachment{}, false, fmt.Errorf("pick attachment: %w", err)
	}
	if !ok {
		return chat.PendingAttachment{}, false, nil
	}
	att, err = p.Stage(f)
	if err != nil {
		return chat.PendingAttachment{}, false, err
	}
	return att, true, nil
}

// Upload uploads a staged attachment once. The size ceiling is re-checked so a
// hand-built PendingAttachment cannot bypass it.
func (p *Pipeline) Upload(ctx context.Context, att chat.PendingAttachment) (chat.AttachmentRef, error) {
	if err := chat.ValidateAttachment(att); err != nil {
		return chat.AttachmentRef{}, err
	}
	ref, err := p.uploader.UploadAttachment(ctx, att)
	if err != nil {
		p.logger.Warn("attachment upload failed", zap.String("name", att.Name), zap.Error(err))
		return chat.AttachmentRef{}, err
	}
	p.logger.Debug("attachment uploaded", zap.String("name", att.Name), zap.String("url", ref.URL))
	return ref, nil
}
