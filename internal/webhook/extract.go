package webhook

import (
	"bytes"
	"encoding/json"
)

const CommentsField = "comments"

// CommentEvent is the normalized form of one comment change.
type CommentEvent struct {
	BusinessID  string
	CommentID   string
	ParentID    string
	CommenterID string
	Username    string
	PostID      string
	Text        string
}

// SkipReason explains why an event is not eligible for a reply.
type SkipReason string

const (
	SkipNone           SkipReason = ""
	SkipMissingComment SkipReason = "missing_comment_id"
	SkipMissingPost    SkipReason = "missing_post_id"
	SkipReplyThread    SkipReason = "reply_thread"
	SkipSelfComment    SkipReason = "self_comment"
)

// Eligibility checks the payload-only filters. Ownership, duplicates and
// the per-post toggle are checked later against stored state.
func (e CommentEvent) Eligibility() SkipReason {
	switch {
	case e.CommentID == "":
		return SkipMissingComment
	case e.PostID == "":
		return SkipMissingPost
	case e.ParentID != "":
		return SkipReplyThread
	case e.CommenterID != "" && e.CommenterID == e.BusinessID:
		return SkipSelfComment
	}
	return SkipNone
}

// postIDExtractor pulls the content id out of one known payload shape.
type postIDExtractor func(value map[string]any) string

// postIDExtractors are tried in order; the first non-empty result wins.
var postIDExtractors = []postIDExtractor{
	func(v map[string]any) string {
		media, ok := v["media"].(map[string]any)
		if !ok {
			return ""
		}
		return stringField(media["id"])
	},
	fieldExtractor("media_id"),
	fieldExtractor("post_id"),
	fieldExtractor("mediaId"),
	fieldExtractor("object_id"),
}

func fieldExtractor(name string) postIDExtractor {
	return func(v map[string]any) string {
		return stringField(v[name])
	}
}

// ExtractPostID returns the content id of a comment value, or "".
func ExtractPostID(value map[string]any) string {
	for _, extract := range postIDExtractors {
		if id := extract(value); id != "" {
			return id
		}
	}
	return ""
}

// DecodeComment normalizes a comments change value. Missing or oddly typed
// fields come back empty rather than as an error.
func DecodeComment(businessID string, raw json.RawMessage) (CommentEvent, error) {
	ev := CommentEvent{BusinessID: businessID}
	if len(raw) == 0 || string(raw) == "null" {
		return ev, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value map[string]any
	if err := dec.Decode(&value); err != nil {
		return ev, err
	}

	ev.CommentID = stringField(value["id"])
	ev.ParentID = stringField(value["parent_id"])
	ev.Text = stringField(value["text"])
	ev.PostID = ExtractPostID(value)
	if from, ok := value["from"].(map[string]any); ok {
		ev.CommenterID = stringField(from["id"])
		ev.Username = stringField(from["username"])
	}
	return ev, nil
}
