package resource_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"relastore/internal/resource"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, open func(context.Context) (io.ReadCloser, error)) string {
	t.Helper()

	rc, err := open(context.Background())
	require.NoError(t, err, "Open error")
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err, "reading resource")
	return string(data)
}

func TestFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello file"), 0o644))

	mtime := time.Date(2021, time.March, 4, 5, 6, 7, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	f := resource.File{Path: path}
	size, ok := f.Size()
	require.True(t, ok, "regular file has a size")
	require.Equal(t, int64(10), size)

	mod, ok := f.ModTime()
	require.True(t, ok)
	require.True(t, mtime.Equal(mod), "modification time")

	require.Equal(t, "hello file", readAll(t, f.Open))
}

func TestFileMissing(t *testing.T) {
	t.Parallel()

	f := resource.File{Path: filepath.Join(t.TempDir(), "nope")}
	_, ok := f.Size()
	require.False(t, ok)
	_, ok = f.ModTime()
	require.False(t, ok)

	_, err := f.Open(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestBytes(t *testing.T) {
	t.Parallel()

	b := resource.Bytes{Data: []byte("abc")}
	size, ok := b.Size()
	require.True(t, ok)
	require.Equal(t, int64(3), size)

	_, ok = b.ModTime()
	require.False(t, ok, "zero time means unknown")

	require.Equal(t, "abc", readAll(t, b.Open))
	require.Equal(t, "abc", readAll(t, b.Open), "bytes can be reopened")
}

func TestStreamOpensOnce(t *testing.T) {
	t.Parallel()

	s := resource.NewStream(strings.NewReader("once"), time.Time{})
	_, ok := s.Size()
	require.False(t, ok, "streams have no declared size")

	require.Equal(t, "once", readAll(t, s.Open))

	_, err := s.Open(context.Background())
	require.ErrorIs(t, err, resource.ErrConsumed)
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	require.NoError(t, resource.WriteFile(path, strings.NewReader("first"), 0o600))
	require.NoError(t, resource.WriteFile(path, strings.NewReader("second"), 0o600), "overwrite")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestWriteFileFailureLeavesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	err := resource.WriteFile(filepath.Join(dir, "out.bin"), failingReader{}, 0o600)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCopyAndMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	dup := filepath.Join(dir, "dup")
	require.NoError(t, resource.CopyFile(src, dup))
	data, err := os.ReadFile(dup)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	moved := filepath.Join(dir, "moved")
	require.NoError(t, resource.MoveFile(src, moved))
	_, err = os.Stat(src)
	require.ErrorIs(t, err, os.ErrNotExist, "source gone after move")
	data, err = os.ReadFile(moved)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

// fakeS3 answers the HEAD and GET requests minio-go issues for a single
// object.
func fakeS3(t *testing.T, bucket, key string, body []byte, modified time.Time) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+bucket+"/"+key {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Last-Modified", modified.UTC().Format(http.TimeFormat))
		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)

		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestS3Object(t *testing.T) {
	t.Parallel()

	modified := time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)
	srv := fakeS3(t, "bucket", "dir/object.txt", []byte("from s3"), modified)

	endpoint, err := url.Parse(srv.URL)
	require.NoError(t, err)

	client, err := resource.NewS3Client(resource.S3Config{
		Endpoint:  endpoint.Host,
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
	})
	require.NoError(t, err, "NewS3Client error")

	obj, err := resource.StatS3Object(context.Background(), client, "bucket", "dir/object.txt")
	require.NoError(t, err, "StatS3Object error")

	size, ok := obj.Size()
	require.True(t, ok)
	require.Equal(t, int64(7), size)

	mod, ok := obj.ModTime()
	require.True(t, ok)
	require.True(t, modified.Equal(mod), "modification time from Last-Modified")

	require.Equal(t, "from s3", readAll(t, obj.Open))

	_, err = resource.StatS3Object(context.Background(), client, "bucket", "missing")
	require.Error(t, err, "missing object")
}

func TestNewS3ClientRequiresEndpoint(t *testing.T) {
	t.Parallel()

	_, err := resource.NewS3Client(resource.S3Config{})
	require.Error(t, err)
}
