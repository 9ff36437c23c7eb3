package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/internal/metrics"
	"github.com/brettbedarf/codetree/internal/util"
)

// S3Source contains S3-specific source fields. Endpoint, when set, targets
// an S3 compatible server (MinIO) and implies path style addressing.
type S3Source struct {
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	AccessKey string `json:"access_key,omitempty"`
	SecretKey string `json:"secret_key,omitempty"`
	PathStyle bool   `json:"path_style,omitempty"`
}

func (s *S3Source) Provider(ctx context.Context) (codetree.StorageProvider, error) {
	if s.Bucket == "" {
		return nil, errors.New("s3 source: bucket is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	if s.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
		o.UsePathStyle = s.PathStyle || s.Endpoint != ""
	})
	return NewS3(client, s.Bucket, s.Prefix), nil
}

// S3API is the subset of the S3 client used by [S3]
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 implements [codetree.StorageProvider] over a bucket. Directories are
// key prefixes delimited by "/"; entry "/a/b.txt" is key "<prefix>/a/b.txt".
type S3 struct {
	client S3API
	bucket string
	prefix string
}

func NewS3(client S3API, bucket, prefix string) *S3 {
	return &S3{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (b *S3) Root() string {
	if b.prefix == "" {
		return "s3://" + b.bucket
	}
	return "s3://" + b.bucket + "/" + b.prefix
}

// key returns the object key for entry path p
func (b *S3) key(p string) string {
	k := strings.TrimPrefix(codetree.CleanPath(p), "/")
	switch {
	case b.prefix == "":
		return k
	case k == "":
		return b.prefix
	default:
		return b.prefix + "/" + k
	}
}

// dirPrefix returns the listing prefix for directory p
func (b *S3) dirPrefix(p string) string {
	k := b.key(p)
	if k == "" {
		return ""
	}
	return k + "/"
}

func (b *S3) ReadDir(ctx context.Context, p string) ([]codetree.Entry, error) {
	logger := util.GetLogger("S3.ReadDir")
	p = codetree.CleanPath(p)
	dp := b.dirPrefix(p)

	start := time.Now()
	var entries []codetree.Entry
	pages := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.bucket),
		Prefix:    aws.String(dp),
		Delimiter: aws.String("/"),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			metrics.RecordStorageOperation(S3Type, "read_dir", time.Since(start), false)
			return nil, fmt.Errorf("list %s: %w", dp, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), dp), "/")
			if name == "" {
				continue
			}
			entries = append(entries, codetree.NewEntry(path.Join(p, name), codetree.KindDir))
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), dp)
			if name == "" || strings.Contains(name, "/") {
				continue // directory marker
			}
			e := codetree.NewEntry(path.Join(p, name), codetree.KindFile)
			e.Size = aws.ToInt64(obj.Size)
			e.ModTime = aws.ToTime(obj.LastModified)
			entries = append(entries, e)
		}
	}
	metrics.RecordStorageOperation(S3Type, "read_dir", time.Since(start), true)
	logger.Trace().Str("prefix", dp).Int("count", len(entries)).Msg("Listed prefix")
	return entries, nil
}

func (b *S3) Stat(ctx context.Context, p string) (codetree.Entry, error) {
	p = codetree.CleanPath(p)
	if b.key(p) == "" {
		return codetree.NewEntry(p, codetree.KindDir), nil
	}

	start := time.Now()
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	metrics.RecordStorageOperation(S3Type, "head_object", time.Since(start), err == nil)
	if err == nil {
		e := codetree.NewEntry(p, codetree.KindFile)
		e.Size = aws.ToInt64(out.ContentLength)
		e.ModTime = aws.ToTime(out.LastModified)
		return e, nil
	}
	if !isNotFound(err) {
		return codetree.Entry{}, fmt.Errorf("head %s: %w", p, err)
	}

	// no object; a directory exists if anything lives below it
	list, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		Prefix:  aws.String(b.dirPrefix(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return codetree.Entry{}, fmt.Errorf("list %s: %w", p, err)
	}
	if aws.ToInt32(list.KeyCount) > 0 || len(list.Contents) > 0 {
		return codetree.NewEntry(p, codetree.KindDir), nil
	}
	return codetree.Entry{}, fmt.Errorf("%s: %w", p, codetree.ErrNotExist)
}

func (b *S3) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	p = codetree.CleanPath(p)

	start := time.Now()
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(p)),
	})
	metrics.RecordStorageOperation(S3Type, "get_object", time.Since(start), err == nil)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", p, codetree.ErrNotExist)
		}
		return nil, fmt.Errorf("get object %s: %w", p, err)
	}
	return out.Body, nil
}

// Create buffers writes in memory and uploads them with one PutObject when
// the writer is closed
func (b *S3) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, s3: b, key: b.key(codetree.CleanPath(p))}, nil
}

var _ codetree.StorageProvider = (*S3)(nil)

type s3Writer struct {
	ctx    context.Context
	s3     *S3
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed s3 writer")
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	logger := util.GetLogger("S3.Put")
	if w.closed {
		return nil
	}
	w.closed = true

	start := time.Now()
	size := int64(w.buf.Len())
	_, err := w.s3.client.PutObject(w.ctx, &s3.PutObjectInput{
		Bucket:        aws.String(w.s3.bucket),
		Key:           aws.String(w.key),
		Body:          bytes.NewReader(w.buf.Bytes()),
		ContentLength: aws.Int64(size),
	})
	metrics.RecordStorageOperation(S3Type, "put_object", time.Since(start), err == nil)
	if err != nil {
		return fmt.Errorf("put object %s: %w", w.key, err)
	}
	logger.Debug().Str("key", w.key).Int64("size", size).Msg("Uploaded object")
	return nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
