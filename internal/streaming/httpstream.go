package streaming

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/webdav"
)

// NewHTTPStreamHandler re-exposes stream as a URI-addressable byte source
// for media players: a single-file golang.org/x/net/webdav filesystem,
// so Range/GET/HEAD framing is delegated to the same library the teacher
// already uses for its file-tree WebDAV server (spec §4.4
// "create_http_stream ... thin adapter outside the core").
//
// The returned handler owns stream for its lifetime — call Close to
// dispose the underlying LocalStream once the caller is done serving it.
func NewHTTPStreamHandler(stream *LocalStream, name string) *HTTPStreamHandler {
	h := &webdav.Handler{
		FileSystem: &singleFileFS{stream: stream, name: cleanName(name)},
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				slog.Debug("http stream request", "method", r.Method, "path", r.URL.Path, "error", err)
			}
		},
	}
	return &HTTPStreamHandler{handler: h, stream: stream}
}

// HTTPStreamHandler is an http.Handler fronting exactly one LocalStream.
type HTTPStreamHandler struct {
	handler *webdav.Handler
	stream  *LocalStream
}

func (h *HTTPStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Close disposes the underlying stream.
func (h *HTTPStreamHandler) Close() { h.stream.Dispose() }

func cleanName(name string) string {
	name = path.Clean("/" + name)
	if name == "/." {
		name = "/"
	}
	return name
}

// singleFileFS adapts one LocalStream to webdav.FileSystem. Read-only:
// every write/mutate operation returns os.ErrPermission.
type singleFileFS struct {
	stream *LocalStream
	name   string
}

func (fs *singleFileFS) Mkdir(ctx context.Context, name string, perm os.FileMode) error {
	return os.ErrPermission
}

func (fs *singleFileFS) RemoveAll(ctx context.Context, name string) error {
	return os.ErrPermission
}

func (fs *singleFileFS) Rename(ctx context.Context, oldName, newName string) error {
	return os.ErrPermission
}

func (fs *singleFileFS) OpenFile(ctx context.Context, name string, flag int, perm os.FileMode) (webdav.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, os.ErrPermission
	}
	if cleanName(name) != fs.name {
		return nil, os.ErrNotExist
	}
	return &httpStreamFile{stream: fs.stream, name: fs.name}, nil
}

func (fs *singleFileFS) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	if cleanName(name) != fs.name {
		return nil, os.ErrNotExist
	}
	return &streamFileInfo{name: strings.TrimPrefix(fs.name, "/"), size: fs.stream.Length()}, nil
}

// httpStreamFile adapts LocalStream to webdav.File. Seek/Read are
// serialized by the embedded mutex the same way the teacher's webdavFile
// serializes access to its vfs.File.
type httpStreamFile struct {
	mu     sync.Mutex
	stream *LocalStream
	name   string
}

func (f *httpStreamFile) Close() error { return nil }

func (f *httpStreamFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	return f.stream.Read(ctx, p)
}

func (f *httpStreamFile) Seek(offset int64, whence int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	size := f.stream.Length()
	pos := f.stream.Position()

	switch whence {
	case 0:
		pos = offset
	case 1:
		pos += offset
	case 2:
		pos = size + offset
	}
	if pos < 0 {
		pos = 0
	}
	if pos > size {
		pos = size
	}

	if err := f.stream.Seek(pos); err != nil {
		return 0, err
	}
	return pos, nil
}

func (f *httpStreamFile) Readdir(count int) ([]os.FileInfo, error) {
	return nil, os.ErrInvalid
}

func (f *httpStreamFile) Stat() (os.FileInfo, error) {
	return &streamFileInfo{name: strings.TrimPrefix(f.name, "/"), size: f.stream.Length()}, nil
}

func (f *httpStreamFile) Write(p []byte) (int, error) {
	return 0, os.ErrPermission
}

// streamFileInfo is a minimal os.FileInfo for the single served file.
type streamFileInfo struct {
	name string
	size int64
}

func (i *streamFileInfo) Name() string       { return i.name }
func (i *streamFileInfo) Size() int64        { return i.size }
func (i *streamFileInfo) Mode() os.FileMode  { return 0444 }
func (i *streamFileInfo) ModTime() time.Time { return time.Time{} }
func (i *streamFileInfo) IsDir() bool        { return false }
func (i *streamFileInfo) Sys() interface{}   { return nil }
