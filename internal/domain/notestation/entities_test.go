package notestation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoteLinkRefID(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"notestation://remote/self/1026_ABCD", "1026_ABCD"},
		{"notestation://remote/self/1026_ABCD/", "1026_ABCD"},
		{"notestation://remote/self/1026_ABCD?open=1", "1026_ABCD"},
		{"NoteStation://remote/self/xyz#frag", "xyz"},
		{"https://example.com/a", ""},
		{"attachments/a.png", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NoteLinkRefID(tt.href), tt.href)
	}
}

func TestSortedAttachmentsIsDeterministic(t *testing.T) {
	rec := NoteRecord{Attachments: map[string]AttachmentRecord{
		"_b": {Name: "b.png", MD5: "2"},
		"_a": {Name: "a.png", MD5: "1"},
	}}
	got := rec.SortedAttachments()
	assert.Equal(t, "a.png", got[0].Name)
	assert.Equal(t, "b.png", got[1].Name)
	assert.Equal(t, "file_1", got[0].MemberName())
}

func TestNoteTimestamps(t *testing.T) {
	created, modified, ok := NoteTimestamps(NoteRecord{CTime: float64(1_600_000_000), MTime: float64(1_600_000_100_000)})
	assert.True(t, ok)
	assert.Equal(t, time.Unix(1_600_000_000, 0).UTC(), created)
	assert.Equal(t, time.Unix(1_600_000_100, 0).UTC(), modified)

	created, modified, ok = NoteTimestamps(NoteRecord{MTime: "2021-03-04"})
	assert.True(t, ok)
	assert.Equal(t, created, modified)

	_, _, ok = NoteTimestamps(NoteRecord{})
	assert.False(t, ok)
}
