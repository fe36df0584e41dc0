package gdrive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeFile struct {
	ID           string
	Name         string
	MimeType     string
	Parent       string
	ModifiedTime string
	Content      []byte
}

// fakeDrive serves the subset of the Drive v3 REST API the store uses.
type fakeDrive struct {
	mu      gosync.Mutex
	files   map[string]*fakeFile
	nextID  int
	creates int
	updates int
}

var parentQuery = regexp.MustCompile(`'([^']*)' in parents`)

func newFakeDrive() *fakeDrive {
	return &fakeDrive{files: map[string]*fakeFile{}}
}

func (d *fakeDrive) add(f *fakeFile) *fakeFile {
	d.mu.Lock()
	defer d.mu.Unlock()
	if f.ID == "" {
		d.nextID++
		f.ID = fmt.Sprintf("file-%d", d.nextID)
	}
	if f.ModifiedTime == "" {
		f.ModifiedTime = "2023-08-03T20:14:14.000Z"
	}
	d.files[f.ID] = f
	return f
}

func (d *fakeDrive) byName(parent, name string) *fakeFile {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, f := range d.files {
		if f.Parent == parent && f.Name == name {
			return f
		}
	}
	return nil
}

func (d *fakeDrive) counts() (creates, updates int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.creates, d.updates
}

func (d *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/drive/v3/files":
		d.list(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/drive/v3/files/"):
		d.download(w, strings.TrimPrefix(r.URL.Path, "/drive/v3/files/"))
	case r.Method == http.MethodPost && r.URL.Path == "/drive/v3/files":
		var meta fileJSON
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		d.write(w, &fakeFile{Name: meta.Name, MimeType: meta.MimeType, Parent: first(meta.Parents)})
	case r.Method == http.MethodPost && r.URL.Path == "/upload/drive/v3/files":
		meta, content, err := readMultipart(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		d.mu.Lock()
		d.creates++
		d.mu.Unlock()
		d.write(w, &fakeFile{
			Name:         meta.Name,
			MimeType:     meta.MimeType,
			Parent:       first(meta.Parents),
			ModifiedTime: meta.ModifiedTime,
			Content:      content,
		})
	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/upload/drive/v3/files/"):
		id := strings.TrimPrefix(r.URL.Path, "/upload/drive/v3/files/")
		meta, content, err := readMultipart(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		d.mu.Lock()
		f, ok := d.files[id]
		if ok {
			d.updates++
			f.Content = content
			if meta.ModifiedTime != "" {
				f.ModifiedTime = meta.ModifiedTime
			}
		}
		d.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeFile(w, f)
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotImplemented)
	}
}

func (d *fakeDrive) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	m := parentQuery.FindStringSubmatch(q)
	if m == nil {
		http.Error(w, "missing parent in query", http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	files := []fileJSON{}
	for _, f := range d.files {
		if f.Parent != m[1] {
			continue
		}
		isFolder := f.MimeType == mimeFolder
		if strings.Contains(q, "mimeType = '"+mimeFolder+"'") && !isFolder {
			continue
		}
		if strings.Contains(q, "mimeType != '"+mimeFolder+"'") && isFolder {
			continue
		}
		files = append(files, toJSON(f))
	}
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"files": files})
}

func (d *fakeDrive) download(w http.ResponseWriter, id string) {
	d.mu.Lock()
	f, ok := d.files[id]
	d.mu.Unlock()
	if !ok {
		http.Error(w, `{"error": {"code": 404, "message": "File not found"}}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(f.Content)
}

func (d *fakeDrive) write(w http.ResponseWriter, f *fakeFile) {
	writeFile(w, d.add(f))
}

type fileJSON struct {
	ID           string   `json:"id,omitempty"`
	Name         string   `json:"name,omitempty"`
	MimeType     string   `json:"mimeType,omitempty"`
	Parents      []string `json:"parents,omitempty"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	Size         string   `json:"size,omitempty"`
}

func toJSON(f *fakeFile) fileJSON {
	out := fileJSON{
		ID:           f.ID,
		Name:         f.Name,
		MimeType:     f.MimeType,
		Parents:      []string{f.Parent},
		ModifiedTime: f.ModifiedTime,
	}
	if f.MimeType != mimeFolder && f.MimeType != mimeShortcut {
		out.Size = strconv.Itoa(len(f.Content))
	}
	return out
}

func writeFile(w http.ResponseWriter, f *fakeFile) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toJSON(f))
}

// readMultipart splits a multipart/related upload into its metadata and media parts.
func readMultipart(r *http.Request) (*fileJSON, []byte, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, err
	}
	reader := multipart.NewReader(r.Body, params["boundary"])

	part, err := reader.NextPart()
	if err != nil {
		return nil, nil, err
	}
	var meta fileJSON
	if err := json.NewDecoder(part).Decode(&meta); err != nil {
		return nil, nil, err
	}

	part, err = reader.NextPart()
	if err != nil {
		return nil, nil, err
	}
	content, err := io.ReadAll(part)
	return &meta, content, err
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func newFakeStore(t *testing.T, dryRun bool) (*Store, *fakeDrive) {
	t.Helper()
	fake := newFakeDrive()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := NewStore(context.Background(), &Config{
		AccessToken: "token",
		Endpoint:    server.URL + "/drive/v3/",
		DryRun:      dryRun,
	})
	require.NoError(t, err)
	return store, fake
}
