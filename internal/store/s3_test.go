package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

var _ Store = (*S3)(nil)

// fakeS3 is a minimal path-style S3 endpoint backed by a map. It covers
// just the calls the backend makes: PUT and GET objects, HEAD, and
// ListObjectsV2.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	requests int
	ranges   []string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

func (f *fakeS3) seenRanges() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ranges...)
}

func (f *fakeS3) seed(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()

	// Path style: /<bucket>/<key>. A bucket-only GET is a listing.
	path := strings.TrimPrefix(r.URL.Path, "/")
	_, key, hasKey := strings.Cut(path, "/")

	switch {
	case r.Method == http.MethodGet && (!hasKey || key == ""):
		f.serveList(w)
	case r.Method == http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.mu.Lock()
		f.objects[key] = data
		f.mu.Unlock()
		w.Header().Set("ETag", `"fake-etag"`)
	case r.Method == http.MethodHead:
		f.mu.Lock()
		data, ok := f.objects[key]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	case r.Method == http.MethodGet:
		f.mu.Lock()
		data, ok := f.objects[key]
		f.mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		start := 0
		if rng := r.Header.Get("Range"); rng != "" {
			f.mu.Lock()
			f.ranges = append(f.ranges, rng)
			f.mu.Unlock()
			fmt.Sscanf(rng, "bytes=%d-", &start)
			if start > len(data) {
				start = len(data)
			}
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(data)-1, len(data)))
			w.Header().Set("Content-Length", fmt.Sprint(len(data)-start))
			w.WriteHeader(http.StatusPartialContent)
			w.Write(data[start:])
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.Write(data)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (f *fakeS3) serveList(w http.ResponseWriter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<ListBucketResult><IsTruncated>false</IsTruncated>`)
	for key, data := range f.objects {
		fmt.Fprintf(&sb, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2024-01-01T00:00:00.000Z</LastModified></Contents>", key, len(data))
	}
	sb.WriteString(`</ListBucketResult>`)
	w.Header().Set("Content-Type", "application/xml")
	io.WriteString(w, sb.String())
}

func newFakeBackend(t *testing.T) (*S3, *fakeS3) {
	t.Helper()
	f := newFakeS3()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	sess := session.Must(session.NewSession(&aws.Config{
		Region:           aws.String("us-east-1"),
		Endpoint:         aws.String(srv.URL),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials("test", "test", ""),
	}))
	return NewS3(sess, "artifacts"), f
}

func TestS3PutOpenRoundTrip(t *testing.T) {
	s, f := newFakeBackend(t)
	payload := bytes.Repeat([]byte("mp4data!"), 128)

	id, size, err := s.Put(context.Background(), bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if !ValidID(id) {
		t.Errorf("Put() id = %q is not a valid artifact id", id)
	}
	if size != int64(len(payload)) {
		t.Errorf("Put() size = %d, want %d", size, len(payload))
	}
	f.mu.Lock()
	_, stored := f.objects[id+".mp4"]
	f.mu.Unlock()
	if !stored {
		t.Fatalf("object %s.mp4 not uploaded", id)
	}

	rc, info, err := s.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer rc.Close()
	if info.Size != int64(len(payload)) {
		t.Errorf("Open() info.Size = %d, want %d", info.Size, len(payload))
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Error("read back bytes differ from uploaded payload")
	}
}

func TestS3OpenNotFound(t *testing.T) {
	s, _ := newFakeBackend(t)
	if _, _, err := s.Open(context.Background(), NewID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open() error = %v, want ErrNotFound", err)
	}
}

func TestS3StatNotFound(t *testing.T) {
	s, _ := newFakeBackend(t)
	if _, err := s.Stat(context.Background(), NewID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Stat() error = %v, want ErrNotFound", err)
	}
}

func TestS3MalformedIDSkipsNetwork(t *testing.T) {
	s, f := newFakeBackend(t)

	for _, id := range []string{"", "short", "../../etc/passwd/../../etc/passwd", strings.ToUpper(NewID())} {
		if _, _, err := s.Open(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Open(%q) error = %v, want ErrNotFound", id, err)
		}
		if _, err := s.Stat(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Stat(%q) error = %v, want ErrNotFound", id, err)
		}
	}
	if n := f.requestCount(); n != 0 {
		t.Errorf("malformed ids caused %d requests, want 0", n)
	}
}

func TestS3Stat(t *testing.T) {
	s, f := newFakeBackend(t)
	id := NewID()
	f.seed(id+".mp4", make([]byte, 2048))

	info, err := s.Stat(context.Background(), id)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if info.Size != 2048 {
		t.Errorf("Stat() size = %d, want 2048", info.Size)
	}
	if info.ModTime.IsZero() {
		t.Error("Stat() mtime is zero")
	}
}

func TestS3RangeRead(t *testing.T) {
	s, f := newFakeBackend(t)
	payload := []byte("0123456789abcdefghij")
	id := NewID()
	f.seed(id+".mp4", payload)

	rc, _, err := s.Open(context.Background(), id)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer rc.Close()

	if _, err := rc.Seek(10, io.SeekStart); err != nil {
		t.Fatalf("Seek() error: %v", err)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(got) != "abcdefghij" {
		t.Errorf("read after seek = %q, want %q", got, "abcdefghij")
	}

	ranges := f.seenRanges()
	if len(ranges) != 1 || ranges[0] != "bytes=10-" {
		t.Errorf("server saw ranges %v, want exactly [bytes=10-]", ranges)
	}
}

func TestS3Stats(t *testing.T) {
	s, f := newFakeBackend(t)
	f.seed(NewID()+".mp4", make([]byte, 100))
	f.seed(NewID()+".mp4", make([]byte, 250))
	f.seed(NewID()+".mp4", make([]byte, 650))

	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if st.Artifacts != 3 {
		t.Errorf("Stats() artifacts = %d, want 3", st.Artifacts)
	}
	if st.TotalBytes != 1000 {
		t.Errorf("Stats() bytes = %d, want 1000", st.TotalBytes)
	}
}

func TestIsNoSuchKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no such key", awserr.New(s3.ErrCodeNoSuchKey, "missing", nil), true},
		{"head not found", awserr.New("NotFound", "missing", nil), true},
		{"wrapped", fmt.Errorf("heading: %w", awserr.New("NotFound", "missing", nil)), true},
		{"throttled", awserr.New("Throttling", "slow down", nil), false},
		{"plain error", errors.New("boom"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNoSuchKey(tt.err); got != tt.want {
				t.Errorf("isNoSuchKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

// mockRangeClient serves GetObject from a byte slice and records the
// Range header of every call, for asserting the reader's laziness.
type mockRangeClient struct {
	s3iface.S3API

	mu     sync.Mutex
	data   []byte
	ranges []string
}

func (m *mockRangeClient) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rng := aws.StringValue(in.Range)
	m.ranges = append(m.ranges, rng)

	var offset int64
	if _, err := fmt.Sscanf(rng, "bytes=%d-", &offset); err != nil {
		return nil, fmt.Errorf("unexpected range %q: %v", rng, err)
	}
	if offset > int64(len(m.data)) {
		offset = int64(len(m.data))
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(m.data[offset:])),
		ContentLength: aws.Int64(int64(len(m.data)) - offset),
	}, nil
}

func (m *mockRangeClient) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ranges...)
}

func newTestS3Reader(data []byte, size int64) (*s3Reader, *mockRangeClient) {
	m := &mockRangeClient{data: data}
	r := &s3Reader{
		ctx:    context.Background(),
		client: m,
		bucket: "artifacts",
		key:    "test.mp4",
		size:   size,
	}
	return r, m
}

func TestS3ReaderLazyOpen(t *testing.T) {
	data := []byte("0123456789")
	r, m := newTestS3Reader(data, int64(len(data)))
	defer r.Close()

	if calls := m.calls(); len(calls) != 0 {
		t.Fatalf("reader fetched before first Read: %v", calls)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("read %q, want %q", got, data)
	}
	if calls := m.calls(); len(calls) != 1 || calls[0] != "bytes=0-" {
		t.Errorf("calls = %v, want exactly [bytes=0-]", calls)
	}
}

func TestS3ReaderServeContentPattern(t *testing.T) {
	data := []byte("0123456789abcdefghij")
	r, m := newTestS3Reader(data, int64(len(data)))
	defer r.Close()

	// ServeContent probes the size with seeks before reading the range.
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		t.Fatalf("Seek(end) error: %v", err)
	}
	if end != int64(len(data)) {
		t.Errorf("Seek(end) = %d, want %d", end, len(data))
	}
	if _, err := r.Seek(5, io.SeekStart); err != nil {
		t.Fatalf("Seek(start) error: %v", err)
	}
	if calls := m.calls(); len(calls) != 0 {
		t.Fatalf("seeks triggered fetches: %v", calls)
	}

	buf := make([]byte, 3)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("ReadFull() error: %v", err)
	}
	if string(buf) != "567" {
		t.Errorf("read %q, want %q", buf, "567")
	}
	if calls := m.calls(); len(calls) != 1 || calls[0] != "bytes=5-" {
		t.Errorf("calls = %v, want exactly [bytes=5-]", calls)
	}
}

func TestS3ReaderSeekKeepsAlignedStream(t *testing.T) {
	data := []byte("0123456789")
	r, m := newTestS3Reader(data, int64(len(data)))
	defer r.Close()

	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		t.Fatalf("ReadFull() error: %v", err)
	}
	// Seeking to the position the stream is already at must not reopen.
	if _, err := r.Seek(4, io.SeekStart); err != nil {
		t.Fatalf("Seek() error: %v", err)
	}
	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(rest) != "456789" {
		t.Errorf("read %q, want %q", rest, "456789")
	}
	if calls := m.calls(); len(calls) != 1 {
		t.Errorf("aligned seek reopened the stream: %v", calls)
	}
}

func TestS3ReaderSeek(t *testing.T) {
	r, _ := newTestS3Reader(make([]byte, 100), 100)
	defer r.Close()

	tests := []struct {
		name    string
		offset  int64
		whence  int
		want    int64
		wantErr bool
	}{
		{"start", 10, io.SeekStart, 10, false},
		{"current", 5, io.SeekCurrent, 15, false},
		{"end", -20, io.SeekEnd, 80, false},
		{"past end", 10, io.SeekEnd, 110, false},
		{"negative", -200, io.SeekCurrent, 0, true},
		{"bad whence", 0, 42, 0, true},
	}
	for _, tt := range tests {
		got, err := r.Seek(tt.offset, tt.whence)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: Seek() error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("%s: Seek() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestS3ReaderReadAtEOF(t *testing.T) {
	data := []byte("0123456789")
	r, m := newTestS3Reader(data, int64(len(data)))
	defer r.Close()

	if _, err := r.Seek(0, io.SeekEnd); err != nil {
		t.Fatalf("Seek() error: %v", err)
	}
	n, err := r.Read(make([]byte, 8))
	if n != 0 || err != io.EOF {
		t.Errorf("Read() at EOF = (%d, %v), want (0, EOF)", n, err)
	}
	if calls := m.calls(); len(calls) != 0 {
		t.Errorf("EOF read fetched from the backend: %v", calls)
	}
}

func TestS3ReaderShortStream(t *testing.T) {
	// The object claims 20 bytes but the stream ends after 10.
	r, _ := newTestS3Reader([]byte("0123456789"), 20)
	defer r.Close()

	_, err := io.ReadAll(r)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("ReadAll() error = %v, want ErrUnexpectedEOF", err)
	}
}

func TestS3ReaderCloseIsIdempotent(t *testing.T) {
	data := []byte("0123456789")
	r, _ := newTestS3Reader(data, int64(len(data)))
	if _, err := r.Read(make([]byte, 4)); err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
