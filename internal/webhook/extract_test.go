package webhook

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPostID_Order(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"media object", `{"media":{"id":"P1"},"media_id":"P2"}`, "P1"},
		{"media_id", `{"media_id":"P2","post_id":"P3"}`, "P2"},
		{"post_id", `{"post_id":"P3","mediaId":"P4"}`, "P3"},
		{"mediaId", `{"mediaId":"P4","object_id":"P5"}`, "P4"},
		{"object_id", `{"object_id":"P5"}`, "P5"},
		{"numeric id", `{"media_id":17895695668004550}`, "17895695668004550"},
		{"empty media falls through", `{"media":{},"post_id":"P3"}`, "P3"},
		{"media not an object", `{"media":"P9"}`, ""},
		{"none", `{"id":"C1"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := DecodeComment("B1", json.RawMessage(tt.value))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.PostID)
		})
	}
}

func TestDecodeComment(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "C1",
		"media": {"id": "P1", "media_product_type": "FEED"},
		"from": {"id": "U9", "username": "hungry"},
		"text": "Do you have vegan options?"
	}`)

	ev, err := DecodeComment("B1", raw)
	require.NoError(t, err)

	assert.Equal(t, CommentEvent{
		BusinessID:  "B1",
		CommentID:   "C1",
		CommenterID: "U9",
		Username:    "hungry",
		PostID:      "P1",
		Text:        "Do you have vegan options?",
	}, ev)
	assert.Equal(t, SkipNone, ev.Eligibility())
}

func TestDecodeComment_Tolerant(t *testing.T) {
	ev, err := DecodeComment("B1", nil)
	require.NoError(t, err)
	assert.Equal(t, SkipMissingComment, ev.Eligibility())

	ev, err = DecodeComment("B1", json.RawMessage(`{"id":"C1","from":"nobody","text":42}`))
	require.NoError(t, err)
	assert.Empty(t, ev.CommenterID)
	assert.Equal(t, "42", ev.Text)

	_, err = DecodeComment("B1", json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestEligibility(t *testing.T) {
	base := CommentEvent{BusinessID: "B1", CommentID: "C1", PostID: "P1", CommenterID: "U9"}

	noPost := base
	noPost.PostID = ""
	thread := base
	thread.ParentID = "C0"
	self := base
	self.CommenterID = "B1"
	anonymous := base
	anonymous.CommenterID = ""

	assert.Equal(t, SkipNone, base.Eligibility())
	assert.Equal(t, SkipMissingPost, noPost.Eligibility())
	assert.Equal(t, SkipReplyThread, thread.Eligibility())
	assert.Equal(t, SkipSelfComment, self.Eligibility())
	assert.Equal(t, SkipNone, anonymous.Eligibility())
}

func TestParse(t *testing.T) {
	p, err := Parse([]byte(`{"object":"instagram","entry":[{"id":17841400000000000,"changes":[{"field":"comments","value":{"id":"C1"}}]}]}`))
	require.NoError(t, err)
	require.Len(t, p.Entry, 1)
	assert.Equal(t, "17841400000000000", p.Entry[0].ID.String())
	assert.Equal(t, CommentsField, p.Entry[0].Changes[0].Field)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestParse_TolerantEntries(t *testing.T) {
	p, err := Parse([]byte(`{"object":"instagram","entry":[` +
		`{"id":{"bad":true},"changes":[{"field":"comments","value":{}}]},` +
		`{"id":"B2","time":"soon","changes":[{"field":7},{"field":"comments","value":{"id":"C2"}}]},` +
		`"junk"` +
		`]}`))
	require.NoError(t, err)
	require.Len(t, p.Entry, 3)

	assert.Empty(t, p.Entry[0].ID.String())
	assert.Len(t, p.Entry[0].Changes, 1)

	assert.Equal(t, "B2", p.Entry[1].ID.String())
	assert.Zero(t, p.Entry[1].Time)
	require.Len(t, p.Entry[1].Changes, 1)
	assert.Equal(t, CommentsField, p.Entry[1].Changes[0].Field)

	assert.Empty(t, p.Entry[2].ID.String())
	assert.Empty(t, p.Entry[2].Changes)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"object":"instagram"}`)
	header := Sign("app-secret", body)

	assert.True(t, VerifySignature("app-secret", body, header))
	assert.False(t, VerifySignature("other", body, header))
	assert.False(t, VerifySignature("app-secret", body, "sha1=abc"))
	assert.False(t, VerifySignature("app-secret", body, "sha256=zz"))
	assert.True(t, VerifySignature("", body, ""))
}
