package notestation

import (
	"sort"
	"strings"
)

const (
	ConfigRecordID         = "config.json"
	RecycleBinID           = "recycle-bin"
	RecycleBinTitle        = "recycle-bin"
	DefaultNotebookTitle   = "My Notebook"
	NoteLinkScheme         = "notestation://"
	AttachmentMemberPrefix = "file_"
)

type ArchiveConfig struct {
	Notebooks []string `json:"notebook"`
	Notes     []string `json:"note"`
}

type NotebookRecord struct {
	Title string `json:"title"`
	CTime any    `json:"ctime"`
	MTime any    `json:"mtime"`
}

type NoteRecord struct {
	Title       string                      `json:"title"`
	ParentID    string                      `json:"parent_id"`
	Content     string                      `json:"content"`
	Encrypt     bool                        `json:"encrypt"`
	LinkID      string                      `json:"link_id"`
	CTime       any                         `json:"ctime"`
	MTime       any                         `json:"mtime"`
	Tags        []string                    `json:"tag"`
	Attachments map[string]AttachmentRecord `json:"attachment"`
}

type AttachmentRecord struct {
	MD5  string `json:"md5"`
	Name string `json:"name"`
	Type string `json:"type"`
	Ref  string `json:"ref"`
	Size int64  `json:"size"`
}

// MemberName is the archive entry holding the attachment bytes.
func (a AttachmentRecord) MemberName() string {
	return AttachmentMemberPrefix + a.MD5
}

func (a AttachmentRecord) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Type)), "image/")
}

// SortedAttachments returns the note's attachments ordered by their record key
// so that planning is deterministic across runs.
func (n NoteRecord) SortedAttachments() []AttachmentRecord {
	keys := make([]string, 0, len(n.Attachments))
	for k := range n.Attachments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]AttachmentRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, n.Attachments[k])
	}
	return out
}

// NoteLinkRefID extracts the stable reference id from a note-link href such as
// notestation://remote/self/1026_ABCD?x=y. It returns "" for other hrefs.
func NoteLinkRefID(href string) string {
	href = strings.TrimSpace(href)
	if !strings.HasPrefix(strings.ToLower(href), NoteLinkScheme) {
		return ""
	}
	rest := href[len(NoteLinkScheme):]
	if idx := strings.IndexAny(rest, "?#"); idx >= 0 {
		rest = rest[:idx]
	}
	rest = strings.TrimRight(rest, "/")
	if idx := strings.LastIndex(rest, "/"); idx >= 0 {
		rest = rest[idx+1:]
	}
	return rest
}
