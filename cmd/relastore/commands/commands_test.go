package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"relastore/internal/storage"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type harness struct {
	t      *testing.T
	cfg    string
	dir    string
	stdin  io.Reader
	extras string
}

func newHarness(t *testing.T, extra ...string) *harness {
	t.Helper()

	dir := t.TempDir()
	h := &harness{t: t, dir: dir, extras: strings.Join(extra, "\n")}
	h.writeConfig()

	_, err := h.run("init")
	require.NoError(t, err, "init error")
	return h
}

func (h *harness) writeConfig() {
	h.t.Helper()

	body := fmt.Sprintf(`
database:
  driver: sqlite3
  dsn: %s
store:
  compression: medium
  temp_dir: %s
log:
  level: error
%s
`, filepath.Join(h.dir, "store.db"), h.dir, h.extras)

	h.cfg = filepath.Join(h.dir, "relastore.yaml")
	require.NoError(h.t, os.WriteFile(h.cfg, []byte(body), 0o600))
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	if h.stdin != nil {
		root.SetIn(h.stdin)
		h.stdin = nil
	}
	root.SetArgs(append([]string{"--config", h.cfg}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()

	out, err := h.run(args...)
	require.NoErrorf(h.t, err, "relastore %s", strings.Join(args, " "))
	return out
}

func (h *harness) file(name, content string) string {
	h.t.Helper()

	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPutListGet(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	a := h.file("a.txt", "alpha content")
	b := h.file("b.txt", "bravo content")

	out := h.mustRun("put", "--name", "docs/a.txt", a)
	require.Contains(t, out, "docs/a.txt")
	require.Contains(t, out, "urn:uuid:")

	h.mustRun("put", "--name", "docs/b.txt", b)

	out = h.mustRun("ls", "docs/*")
	require.Contains(t, out, "NAME")
	require.Contains(t, out, "docs/a.txt")
	require.Contains(t, out, "docs/b.txt")

	out = h.mustRun("ls", "--bytes", "*a.txt")
	require.Contains(t, out, "13")
	require.NotContains(t, out, "docs/b.txt")

	require.Equal(t, "alpha content", h.mustRun("get", "docs/a.txt"))

	dest := filepath.Join(h.dir, "restored.txt")
	h.mustRun("get", "docs/b.txt", "-o", dest)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "bravo content", string(data))

	src, err := os.Stat(b)
	require.NoError(t, err)
	restored, err := os.Stat(dest)
	require.NoError(t, err)
	require.WithinDuration(t, src.ModTime(), restored.ModTime(), time.Millisecond, "modification time restored")
}

func TestPutManyConcurrently(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	var paths []string
	for i := range 10 {
		paths = append(paths, h.file(fmt.Sprintf("f%02d.bin", i), strings.Repeat(strconv.Itoa(i), 1000)))
	}

	h.mustRun(append([]string{"put"}, paths...)...)

	out := h.mustRun("ls")
	for _, p := range paths {
		require.Contains(t, out, p)
	}
	require.Equal(t, strings.Repeat("7", 1000), h.mustRun("get", paths[7]))
}

func TestPutExistingNeedsReplace(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	path := h.file("x.txt", "one")
	h.mustRun("put", "--name", "x", path)

	_, err := h.run("put", "--name", "x", path)
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	h.mustRun("put", "--replace", "--name", "x", path)
	require.Equal(t, "two", h.mustRun("get", "x"))

	_, err = h.run("put", "--name", "y", path, path)
	require.Error(t, err, "--name with several files")
}

func TestPutStdin(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.stdin = strings.NewReader("piped in")
	h.mustRun("put", "--name", "stdin.txt", "-")
	require.Equal(t, "piped in", h.mustRun("get", "stdin.txt"))

	h.stdin = strings.NewReader("nameless")
	_, err := h.run("put", "-")
	require.Error(t, err)
}

func TestMoveCopyRemove(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.mustRun("put", "--name", "a", h.file("a", "AAA"))
	h.mustRun("put", "--name", "b", h.file("b", "BBB"))

	stat := h.mustRun("stat", "a")
	require.Contains(t, stat, "Integer:")
	uri := lineValue(stat, "URI:")

	_, err := h.run("mv", "a", "b")
	require.ErrorIs(t, err, storage.ErrAlreadyExists)

	h.mustRun("mv", "--replace", "--atomic", "a", "b")
	require.Equal(t, uri, lineValue(h.mustRun("stat", "b"), "URI:"), "move keeps the identity")
	require.Equal(t, "AAA", h.mustRun("get", "b"))

	_, err = h.run("stat", "a")
	require.ErrorIs(t, err, storage.ErrNotFound)

	h.mustRun("cp", "b", "c")
	require.NotEqual(t, uri, lineValue(h.mustRun("stat", "c"), "URI:"), "copy mints a new identity")
	require.Equal(t, "AAA", h.mustRun("get", "c"))

	h.mustRun("put", "--name", "d", h.file("d", "DDD"))
	h.mustRun("cp", "--replace", "d", "c")
	require.Equal(t, "DDD", h.mustRun("get", "c"))

	out := h.mustRun("rm", "b", "c")
	require.Contains(t, out, "Deleted b")
	require.Contains(t, out, "Deleted c")

	_, err = h.run("rm", "b", "d")
	require.ErrorIs(t, err, storage.ErrNotFound)
	_, err = h.run("stat", "d")
	require.ErrorIs(t, err, storage.ErrNotFound, "later names are still deleted")
}

func TestInitPrint(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	out := h.mustRun("init", "--print")
	require.Contains(t, out, "CREATE TABLE IF NOT EXISTS storage")
}

func TestBadConfig(t *testing.T) {
	t.Parallel()

	h := &harness{t: t, cfg: filepath.Join(t.TempDir(), "relastore.yaml")}
	require.NoError(t, os.WriteFile(h.cfg, []byte("store:\n  provider: carrier-pigeon\n"), 0o600))

	_, err := h.run("ls")
	require.Error(t, err)
}

func lineValue(out, prefix string) string {
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, prefix); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// memS3 is a minimal path-style S3 endpoint holding objects in memory.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	if !strings.Contains(path, "/") {
		// Bucket level requests: every bucket exists.
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		m.objects[path] = body
		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodHead, http.MethodGet:
		body, ok := m.objects[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("Last-Modified", time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		w.Header().Set("ETag", `"0123456789abcdef0123456789abcdef"`)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (m *memS3) get(key string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[key]
}

func TestImportExport(t *testing.T) {
	t.Parallel()

	fake := &memS3{objects: map[string][]byte{"inbox/report.csv": []byte("a,b,c\n1,2,3\n")}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	h := newHarness(t, fmt.Sprintf(`s3:
  endpoint: %s
  access_key: key
  secret_key: secret
  region: us-east-1`, strings.TrimPrefix(srv.URL, "http://")))

	out := h.mustRun("import", "--name", "report.csv", "inbox", "report.csv")
	require.Contains(t, out, "Imported s3://inbox/report.csv as report.csv")
	require.Equal(t, "a,b,c\n1,2,3\n", h.mustRun("get", "report.csv"))

	stat := h.mustRun("stat", "report.csv")
	require.Contains(t, stat, "2024-01-01T00:00:00Z", "modification time taken from the object")

	h.mustRun("export", "--object", "copy.csv", "report.csv", "outbox")
	require.True(t, bytes.Contains(fake.get("outbox/copy.csv"), []byte("a,b,c\n1,2,3\n")), "uploaded content")

	_, err := h.run("import", "inbox", "missing.csv")
	require.Error(t, err)
}
