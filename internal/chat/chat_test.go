package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareByTimeThenID(t *testing.T) {
	t1 := time.Unix(1000, 0)
	t2 := time.Unix(2000, 0)

	msgs := []Message{
		{ID: "10", CreatedAt: t1},
		{ID: "3", CreatedAt: t2},
		{ID: "9", CreatedAt: t1},
		{ID: "2", CreatedAt: t2},
	}
	SortMessages(msgs)

	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"9", "10", "2", "3"}, ids)
}

func TestCompareIDsLexicalFallback(t *testing.T) {
	assert.Equal(t, -1, CompareIDs("abc", "abd"))
	assert.Equal(t, 1, CompareIDs("tmp-b", "42"))
	assert.Equal(t, 0, CompareIDs("7", "7"))
	assert.Equal(t, -1, CompareIDs("7", "10"))
}

func TestNewestIsDisplayOnly(t *testing.T) {
	msgs := []Message{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	newest := Newest(msgs)
	assert.Equal(t, "3", newest[0].ID)
	assert.Equal(t, "1", msgs[0].ID, "source order must not change")
}

func TestValidateSend(t *testing.T) {
	att := &PendingAttachment{URI: "/tmp/a.png", Name: "a.png", Size: 10}
	tests := []struct {
		name    string
		content string
		att     *PendingAttachment
		want    error
	}{
		{"text only", "hi", nil, nil},
		{"attachment only", "", att, nil},
		{"empty", "", nil, ErrEmptyMessage},
		{"whitespace", "   \n", nil, ErrEmptyMessage},
		{"both", "hi", att, ErrContentAndUpload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSend(tt.content, tt.att)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, KindValidation, KindOf(err))
		})
	}
}

func TestValidateAttachmentCeiling(t *testing.T) {
	ok := PendingAttachment{URI: "a", Name: "a", Size: MaxAttachmentBytes}
	assert.NoError(t, ValidateAttachment(ok))

	big := ok
	big.Size = MaxAttachmentBytes + 1
	err := ValidateAttachment(big)
	require.ErrorIs(t, err, ErrAttachmentTooLarge)
	assert.False(t, Retryable(err))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNone, KindOf(nil))
	assert.Equal(t, KindAuth, KindOf(fmt.Errorf("wrapped: %w", E(KindAuth, "list", errors.New("401")))))
	assert.Equal(t, KindNetwork, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindValidation, KindOf(ErrEmptyMessage))
	assert.True(t, Retryable(E(KindServer, "send", errors.New("503"))))
}

func TestDeliveryTransitions(t *testing.T) {
	assert.NoError(t, Transition(Composing, Pending))
	assert.NoError(t, Transition(Pending, Sent))
	assert.NoError(t, Transition(Pending, Failed))
	assert.NoError(t, Transition(Failed, Pending))

	assert.Error(t, Transition(Sent, Pending))
	assert.Error(t, Transition(Failed, Sent))
	assert.Error(t, Transition(Composing, Sent))
}

func TestCloneIsDeep(t *testing.T) {
	m := Message{ID: "1", Attachment: &AttachmentRef{Name: "a"}}
	c := m.Clone()
	c.Attachment.Name = "b"
	assert.Equal(t, "a", m.Attachment.Name)
}
