package chat

import (
	"fmt"
	"strings"
)

// ValidateSend checks that exactly one of content and attachment is present.
func ValidateSend(content string, att *PendingAttachment) error {
	hasContent := strings.TrimSpace(content) != ""
	switch {
	case !hasContent && att == nil:
		return E(KindValidation, "send", ErrEmptyMessage)
	case hasContent && att != nil:
		return E(KindValidation, "send", ErrContentAndUpload)
	}
	return nil
}

// ValidateAttachment checks a staged attachment against the upload ceiling.
func ValidateAttachment(att PendingAttachment) error {
	if att.Size > MaxAttachmentBytes {
		return E(KindValidation, "stage", fmt.Errorf("%w: %d bytes", ErrAttachmentTooLarge, att.Size))
	}
	if att.Size <= 0 {
		return E(KindValidation, "stage", fmt.Errorf("%w: empty file", ErrInvalidAttachment))
	}
	if att.URI == "" || att.Name == "" {
		return E(KindValidation, "stage", fmt.Errorf("%w: missing uri or name", ErrInvalidAttachment))
	}
	return nil
}
