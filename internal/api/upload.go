package api

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"

	"github.com/matheus3301/matchchat/internal/chat"
	"go.uber.org/zap"
)

// UploadAttachment uploads a staged local file as multipart form data and returns
// the stored reference.
func (c *Client) UploadAttachment(ctx context.Context, att chat.PendingAttachment) (chat.AttachmentRef, error) {
	const op = "upload attachment"

	data, err := os.ReadFile(strings.TrimPrefix(att.URI, "file://"))
	if err != nil {
		return chat.AttachmentRef{}, chat.E(chat.KindValidation, op, fmt.Errorf("%w: %v", chat.ErrInvalidAttachment, err))
	}
	if int64(len(data)) > chat.MaxAttachmentBytes {
		return chat.AttachmentRef{}, chat.E(chat.KindValidation, op, fmt.Errorf("%w: %d bytes", chat.ErrAttachmentTooLarge, len(data)))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, att.Name))
	h.Set("Content-Type", att.MimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return chat.AttachmentRef{}, chat.E(chat.KindValidation, op, err)
	}
	if _, err := part.Write(data); err != nil {
		return chat.AttachmentRef{}, chat.E(chat.KindValidation, op, err)
	}
	if err := w.Close(); err != nil {
		return chat.AttachmentRef{}, chat.E(chat.KindValidation, op, err)
	}

	var wire attachmentJSON
	if err := c.do(ctx, op, http.MethodPost, "/attachments", buf.Bytes(), w.FormDataContentType(), &wire); err != nil {
		return chat.AttachmentRef{}, err
	}
	ref, err := wire.toChat()
	if err != nil {
		return chat.AttachmentRef{}, malformed(op, err)
	}
	c.logger.Debug("attachment stored", zap.String("name", ref.Name), zap.Int64("size", ref.Size))
	return ref, nil
}
