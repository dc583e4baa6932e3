package activity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDOrObject_String(t *testing.T) {
	const exampleDelete = `{
		"@context": "https://www.w3.org/ns/activitystreams",
		"type": "Delete",
		"id": "https://example.com/activities/delete/1",
		"actor": "https://example.com/u/alice",
		"to": ["https://www.w3.org/ns/activitystreams#Public"],
		"object": "https://example.com/post/1"
	}`
	var del Delete
	require.NoError(t, json.Unmarshal([]byte(exampleDelete), &del))
	assert.Equal(t, "https://example.com/post/1", del.Object.ID)
	assert.False(t, del.IsModAction())
}

func TestIDOrObject_Embedded(t *testing.T) {
	const exampleDelete = `{
		"type": "Delete",
		"id": "https://example.com/activities/delete/2",
		"actor": "https://example.com/u/alice",
		"to": [],
		"summary": "spam",
		"object": {"type": "Tombstone", "id": "https://example.com/post/2"}
	}`
	var del Delete
	require.NoError(t, json.Unmarshal([]byte(exampleDelete), &del))
	assert.Equal(t, "https://example.com/post/2", del.Object.ID)
	assert.True(t, del.IsModAction())
}

func TestReportObject_Shapes(t *testing.T) {
	var direct ReportObject
	require.NoError(t, json.Unmarshal([]byte(`"https://example.com/post/1"`), &direct))
	assert.Equal(t, "https://example.com/post/1", direct.ID)
	assert.Empty(t, direct.Candidates)

	// Mastodon sends an array of candidate urls
	var list ReportObject
	require.NoError(t, json.Unmarshal(
		[]byte(`["https://example.com/u/alice", "https://example.com/post/1"]`), &list))
	assert.Empty(t, list.ID)
	assert.Len(t, list.Candidates, 2)
}

func TestReport_Reason(t *testing.T) {
	summary := "native reason"
	content := "mastodon reason"

	r := Report{Summary: &summary}
	reason, err := r.Reason()
	require.NoError(t, err)
	assert.Equal(t, summary, reason)

	r = Report{Content: &content}
	reason, err = r.Reason()
	require.NoError(t, err)
	assert.Equal(t, content, reason)

	r = Report{Summary: &summary, Content: &content}
	reason, err = r.Reason()
	require.NoError(t, err)
	assert.Equal(t, summary, reason, "native format wins when both are present")

	r = Report{}
	_, err = r.Reason()
	assert.ErrorIs(t, err, ErrNoReason)
}

func TestRejectFollow_MissingTo(t *testing.T) {
	// Older peers omit to entirely; it must not fail deserialization.
	const withoutTo = `{
		"type": "Reject",
		"id": "https://remote.tld/activities/reject/1",
		"actor": "https://remote.tld/c/books",
		"object": {
			"type": "Follow",
			"id": "https://example.com/activities/follow/1",
			"actor": "https://example.com/u/alice",
			"object": "https://remote.tld/c/books"
		}
	}`
	var reject RejectFollow
	require.NoError(t, json.Unmarshal([]byte(withoutTo), &reject))
	assert.Empty(t, reject.To)
	assert.Equal(t, "https://example.com/u/alice", reject.Object.Actor)

	// A misshaped to degrades to no recipients instead of an error.
	const badTo = `{
		"type": "Reject",
		"id": "https://remote.tld/activities/reject/2",
		"actor": "https://remote.tld/c/books",
		"to": {"unexpected": "shape"},
		"object": {
			"type": "Follow",
			"id": "https://example.com/activities/follow/2",
			"actor": "https://example.com/u/alice",
			"object": "https://remote.tld/c/books"
		}
	}`
	var reject2 RejectFollow
	require.NoError(t, json.Unmarshal([]byte(badTo), &reject2))
	assert.Empty(t, reject2.To)
}

func TestNewID(t *testing.T) {
	a := NewID("example.com", DeleteType)
	b := NewID("example.com", DeleteType)
	assert.NotEqual(t, a, b)
	assert.Contains(t, a, "https://example.com/activities/delete/")
}
