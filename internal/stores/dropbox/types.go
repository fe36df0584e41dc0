package dropbox

import "time"

const (
	tagFile    = "file"
	tagFolder  = "folder"
	tagDeleted = "deleted"

	modeAdd       = "add"
	modeOverwrite = "overwrite"
)

type listFolderArg struct {
	Path           string `json:"path"`
	Recursive      bool   `json:"recursive"`
	IncludeDeleted bool   `json:"include_deleted"`
	Limit          int    `json:"limit,omitempty"`
}

type listFolderContinueArg struct {
	Cursor string `json:"cursor"`
}

type listFolderResult struct {
	Entries []*entry `json:"entries"`
	Cursor  string   `json:"cursor"`
	HasMore bool     `json:"has_more"`
}

// entry is a file, folder or deleted metadata record, told apart by its tag.
type entry struct {
	Tag            string    `json:".tag"`
	Name           string    `json:"name"`
	ID             string    `json:"id"`
	PathLower      string    `json:"path_lower"`
	PathDisplay    string    `json:"path_display"`
	ClientModified time.Time `json:"client_modified"`
	ServerModified time.Time `json:"server_modified"`
	Rev            string    `json:"rev"`
	Size           int64     `json:"size"`
	ContentHash    string    `json:"content_hash"`
}

type downloadArg struct {
	Path string `json:"path"`
}

type commitInfo struct {
	Path           string `json:"path"`
	Mode           string `json:"mode"`
	Autorename     bool   `json:"autorename"`
	ClientModified string `json:"client_modified,omitempty"`
	Mute           bool   `json:"mute"`
	ContentHash    string `json:"content_hash,omitempty"`
}

type uploadSessionStartResult struct {
	SessionID string `json:"session_id"`
}

type uploadSessionCursor struct {
	SessionID string `json:"session_id"`
	Offset    int64  `json:"offset"`
}

type uploadSessionAppendArg struct {
	Cursor uploadSessionCursor `json:"cursor"`
	Close  bool                `json:"close"`
}

type uploadSessionFinishArg struct {
	Cursor      uploadSessionCursor `json:"cursor"`
	Commit      commitInfo          `json:"commit"`
	ContentHash string          `json:"content_hash,omitempty"`
}
