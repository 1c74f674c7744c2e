package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"

	"video-ingest/internal/logging"
)

// S3 stores artifacts as objects in a single bucket. Uploads go through
// s3manager so large artifacts are sent in parts; an object only becomes
// visible once the upload completes, which gives atomic publish without
// a rename step. Reads issue ranged GetObject calls lazily so a range
// request for the tail of a video fetches only the tail.
type S3 struct {
	bucket   string
	client   s3iface.S3API
	uploader *s3manager.Uploader
}

// NewS3 builds a backend on the given session. Region and credentials
// come from the environment through the usual SDK chain.
func NewS3(sess *session.Session, bucket string) *S3 {
	return &S3{
		bucket:   bucket,
		client:   s3.New(sess),
		uploader: s3manager.NewUploader(sess),
	}
}

func (s *S3) objectKey(id string) string {
	return id + artifactExt
}

// Put streams r to a fresh object key and reports the bytes consumed.
func (s *S3) Put(ctx context.Context, r io.Reader) (string, int64, error) {
	start := time.Now()
	id := NewID()
	cr := &countingReader{r: r}
	_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(id)),
		Body:        cr,
		ContentType: aws.String("video/mp4"),
	})
	recordOp("s3", "put", start, err)
	if err != nil {
		return "", 0, fmt.Errorf("uploading artifact %s: %w", id, err)
	}
	logging.Debug("Uploaded artifact %s (%d bytes) to s3://%s", id, cr.n, s.bucket)
	return id, cr.n, nil
}

// Open heads the object for its size, then returns a lazy reader that
// fetches ranges on demand.
func (s *S3) Open(ctx context.Context, id string) (io.ReadSeekCloser, Info, error) {
	start := time.Now()
	if !ValidID(id) {
		recordOp("s3", "open", start, ErrNotFound)
		return nil, Info{}, ErrNotFound
	}
	info, err := s.head(ctx, id)
	recordOp("s3", "open", start, err)
	if err != nil {
		return nil, Info{}, err
	}
	r := &s3Reader{
		ctx:    ctx,
		client: s.client,
		bucket: s.bucket,
		key:    s.objectKey(id),
		size:   info.Size,
	}
	return r, info, nil
}

// Stat reports size and mtime from a HeadObject call.
func (s *S3) Stat(ctx context.Context, id string) (Info, error) {
	start := time.Now()
	if !ValidID(id) {
		recordOp("s3", "stat", start, ErrNotFound)
		return Info{}, ErrNotFound
	}
	info, err := s.head(ctx, id)
	recordOp("s3", "stat", start, err)
	return info, err
}

// Stats pages through the bucket listing and sums object sizes.
func (s *S3) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			st.Artifacts++
			st.TotalBytes += aws.Int64Value(obj.Size)
		}
		return true
	})
	if err != nil {
		return Stats{}, fmt.Errorf("listing bucket %s: %w", s.bucket, err)
	}
	return st, nil
}

func (s *S3) head(ctx context.Context, id string) (Info, error) {
	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(id)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return Info{}, ErrNotFound
		}
		return Info{}, fmt.Errorf("heading artifact %s: %w", id, err)
	}
	info := Info{Size: aws.Int64Value(out.ContentLength)}
	if out.LastModified != nil {
		info.ModTime = *out.LastModified
	}
	return info, nil
}

// HeadObject reports a missing key as "NotFound" rather than NoSuchKey,
// so both codes map to ErrNotFound.
func isNoSuchKey(err error) bool {
	var ae awserr.Error
	if !errors.As(err, &ae) {
		return false
	}
	switch ae.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}

// countingReader tracks bytes consumed by the uploader so Put can report
// the artifact size without buffering the stream first.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// s3Reader reads one object through ranged gets. No request is issued
// until the first Read after construction or after a Seek, and each
// request asks for bytes from the current offset onward. ServeContent
// seeks to probe the size and then to the range start before reading,
// so a typical range request costs exactly one GetObject.
type s3Reader struct {
	ctx    context.Context
	client s3iface.S3API
	bucket string
	key    string
	size   int64

	offset int64
	body   io.ReadCloser // open stream positioned at offset, nil if none
}

func (r *s3Reader) Read(p []byte) (int, error) {
	if r.offset >= r.size {
		return 0, io.EOF
	}
	if r.body == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	n, err := r.body.Read(p)
	r.offset += int64(n)
	if err == io.EOF {
		r.discard()
		if r.offset < r.size {
			return n, io.ErrUnexpectedEOF
		}
	}
	return n, err
}

func (r *s3Reader) open() error {
	out, err := r.client.GetObjectWithContext(r.ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-", r.offset)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return ErrNotFound
		}
		return fmt.Errorf("reading artifact %s: %w", r.key, err)
	}
	r.body = out.Body
	return nil
}

func (r *s3Reader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.offset + offset
	case io.SeekEnd:
		abs = r.size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("negative position %d", abs)
	}
	if abs != r.offset {
		r.discard()
		r.offset = abs
	}
	return abs, nil
}

// discard drops the open stream; the next Read issues a fresh ranged get.
func (r *s3Reader) discard() {
	if r.body != nil {
		r.body.Close()
		r.body = nil
	}
}

func (r *s3Reader) Close() error {
	r.discard()
	return nil
}
