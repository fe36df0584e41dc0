package dropbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openmined/cloudsync/internal/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, handler http.HandlerFunc, dryRun bool) *Store {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := NewStore(&Config{
		AccessToken: "test-token",
		APIURL:      server.URL + "/2",
		ContentURL:  server.URL + "/content/2",
		DryRun:      dryRun,
	})
	require.NoError(t, err)
	return store
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestStore_ListFolderWithContinue(t *testing.T) {
	var calls atomic.Int32
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)

		switch r.URL.Path {
		case "/2/files/list_folder":
			var arg map[string]any
			require.NoError(t, json.Unmarshal(body, &arg))
			assert.Equal(t, "", arg["path"])
			writeJSON(w, http.StatusOK, `{
				"entries": [
					{".tag": "file", "name": "f.txt", "id": "id:abc", "path_lower": "/f.txt", "path_display": "/f.txt",
					 "client_modified": "2023-08-03T20:14:14Z", "size": 2000, "content_hash": "123321"},
					{".tag": "folder", "name": "Sub", "id": "id:sub", "path_lower": "/sub", "path_display": "/Sub"}
				],
				"cursor": "c1", "has_more": true}`)
		case "/2/files/list_folder/continue":
			assert.JSONEq(t, `{"cursor": "c1"}`, string(body))
			writeJSON(w, http.StatusOK, `{
				"entries": [
					{".tag": "file", "name": "g.pdf", "id": "id:def", "path_lower": "/g.pdf", "path_display": "/g.pdf",
					 "client_modified": "2023-08-01T20:14:14Z", "size": 10, "content_hash": "456"},
					{".tag": "deleted", "name": "old.txt", "path_lower": "/old.txt", "path_display": "/old.txt"}
				],
				"cursor": "c2", "has_more": false}`)
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
		}
	}, false)

	result, err := store.ListFolder(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	require.Len(t, result.Files, 2)
	f := result.Files[0]
	assert.Equal(t, "f.txt", f.Name)
	assert.Equal(t, "/f.txt", f.CloudPath)
	assert.Equal(t, "id:abc", f.ID)
	assert.Equal(t, int64(2000), f.Size)
	assert.Equal(t, "123321", f.ContentHash)
	assert.True(t, f.ClientModified.Equal(time.Date(2023, time.August, 3, 20, 14, 14, 0, time.UTC)))
	assert.Equal(t, sync.CloudID{ID: "/", CloudPath: "/"}, f.Parent)
	assert.Equal(t, "/g.pdf", result.Files[1].CloudPath)

	require.Len(t, result.Folders, 1)
	assert.Equal(t, "/Sub", result.Folders[0].CloudPath)
	assert.Equal(t, "/sub", result.Folders[0].PathLower)
}

func TestStore_ListMissingFolderIsEmpty(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"error_summary": "path/not_found/..", "error": {".tag": "path", "path": {".tag": "not_found"}}}`)
	}, false)

	result, err := store.ListFolder(context.Background(), "/missing")
	require.NoError(t, err)
	assert.Empty(t, result.Files)
	assert.Empty(t, result.Folders)
}

func TestStore_ListOtherErrorsPropagate(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{"error_summary": "path/restricted_content/..", "error": {".tag": "path"}}`)
	}, false)

	_, err := store.ListFolder(context.Background(), "/private")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "path", apiErr.Tag())
	assert.NotErrorIs(t, err, ErrPathNotFound)
}

func TestStore_ReadContent(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/content/2/files/download", r.URL.Path)
		assert.JSONEq(t, `{"path": "id:abc"}`, r.Header.Get(headerAPIArg))
		w.Header().Set(headerAPIResult, `{"name": "f.txt", "path_display": "/f.txt", "size": 5}`)
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.WriteString(w, "hello")
	}, false)

	content, err := store.ReadContent(context.Background(), "id:abc")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestStore_Save(t *testing.T) {
	var uploaded atomic.Bool
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/content/2/files/upload", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		var arg commitInfo
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get(headerAPIArg)), &arg))
		assert.Equal(t, "/Docs/été.txt", arg.Path)
		assert.Equal(t, modeOverwrite, arg.Mode)
		assert.True(t, arg.Mute)
		assert.Equal(t, "2023-08-05T20:14:14Z", arg.ClientModified)
		assert.Equal(t, sync.ContentHashBytes([]byte("data")), arg.ContentHash)
		// the header must stay ASCII
		assert.NotContains(t, r.Header.Get(headerAPIArg), "é")

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "data", string(body))
		uploaded.Store(true)
		writeJSON(w, http.StatusOK, `{"name": "été.txt", "path_display": "/Docs/été.txt", "rev": "a1"}`)
	}, false)

	file := &sync.LocalFileMetadata{
		Name:           "été.txt",
		CloudPath:      "/Docs/été.txt",
		ClientModified: time.Date(2023, time.August, 5, 20, 14, 14, 0, time.UTC),
		Size:           4,
	}
	require.NoError(t, store.Save(context.Background(), []byte("data"), file, true))
	assert.True(t, uploaded.Load())
}

func TestStore_SaveAddMode(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		var arg commitInfo
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get(headerAPIArg)), &arg))
		assert.Equal(t, modeAdd, arg.Mode)
		writeJSON(w, http.StatusConflict, `{"error_summary": "path/conflict/file/..", "error": {".tag": "path"}}`)
	}, false)

	err := store.Save(context.Background(), []byte("x"), &sync.LocalFileMetadata{CloudPath: "/x.txt"}, false)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.HasPrefix("path/conflict"))
}

func TestStore_DryRunSkipsUpload(t *testing.T) {
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected in dry run, got %s", r.URL.Path)
	}, true)

	err := store.Save(context.Background(), []byte("x"), &sync.LocalFileMetadata{CloudPath: "/x.txt"}, true)
	assert.NoError(t, err)
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(&Config{})
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestNewClient_RefreshToken(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt", r.Form.Get("refresh_token"))
		assert.Equal(t, "key", r.Form.Get("client_id"))
		writeJSON(w, http.StatusOK, `{"access_token": "fresh", "token_type": "bearer", "expires_in": 14400}`)
	}))
	t.Cleanup(tokenServer.Close)

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{"entries": [], "cursor": "", "has_more": false}`)
	}))
	t.Cleanup(apiServer.Close)

	store, err := NewStore(&Config{
		RefreshToken: "rt",
		AppKey:       "key",
		AppSecret:    "secret",
		APIURL:       apiServer.URL,
		TokenURL:     tokenServer.URL,
	})
	require.NoError(t, err)

	_, err = store.ListFolder(context.Background(), "/")
	require.NoError(t, err)
}

func TestHeaderJSON(t *testing.T) {
	arg, err := headerJSON(&downloadArg{Path: "/café/\U0001F600.txt"})
	require.NoError(t, err)
	assert.Equal(t, `{"path":"/caf\u00e9/\ud83d\ude00.txt"}`, arg)

	var decoded downloadArg
	require.NoError(t, json.Unmarshal([]byte(arg), &decoded))
	assert.Equal(t, "/café/\U0001F600.txt", decoded.Path)
	assert.False(t, strings.ContainsFunc(arg, func(r rune) bool { return r > 127 }))
}

func TestAPIPath(t *testing.T) {
	assert.Equal(t, "", apiPath("/"))
	assert.Equal(t, "", apiPath(""))
	assert.Equal(t, "/a/b", apiPath("a/b/"))
}
