package backend

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ferryfs/ferry/internal/progress"
	"github.com/ferryfs/ferry/internal/resource"
)

func init() {
	Register(Driver{
		Scheme: "s3",
		New:    NewS3FS,
	})
}

// S3FS implements the contract for S3-compatible object storage. Resource
// paths are "bucket/key". Directories exist only as key prefixes, so IsDir
// probes for keys under "prefix/" and MakeDirs is a no-op.
type S3FS struct {
	Base
	client       *s3.Client
	maxBandwidth int64
}

// NewS3FS constructs an S3 backend instance from options:
//
//	region, endpoint, access_key, secret_key, max_bandwidth
//
// endpoint enables path-style addressing for MinIO and similar services.
func NewS3FS(_ string, opt Options) (FileSystem, error) {
	ctx := context.Background()

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opt.Config["region"]),
	}
	if ak, sk := opt.Config["access_key"], opt.Config["secret_key"]; ak != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(ak, sk, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var client *s3.Client
	if endpoint := opt.Config["endpoint"]; endpoint != "" {
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	} else {
		client = s3.NewFromConfig(awsCfg)
	}

	var maxBandwidth int64
	if raw := opt.Config["max_bandwidth"]; raw != "" {
		maxBandwidth, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid max_bandwidth %q: %w", raw, err)
		}
	}

	fs := &S3FS{
		Base:         NewBase("s3", opt),
		client:       client,
		maxBandwidth: maxBandwidth,
	}
	fs.Bind(fs)
	return fs, nil
}

func splitBucket(res resource.Resource) (bucket, key string) {
	bucket, key, _ = strings.Cut(res.Path(), "/")
	return bucket, key
}

func isNotFound(err error) bool {
	// The SDK surfaces missing objects as smithy API errors; matching on the
	// message keeps this working for NoSuchKey and NotFound alike.
	msg := err.Error()
	return strings.Contains(msg, "NotFound") || strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "404")
}

func (f *S3FS) head(ctx context.Context, res resource.Resource) (*s3.HeadObjectOutput, error) {
	bucket, key := splitBucket(res)
	return f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
}

// Checksum returns the object's ETag.
func (f *S3FS) Checksum(ctx context.Context, res resource.Resource) (string, error) {
	out, err := f.head(ctx, res)
	if err != nil {
		return "", err
	}
	return strings.Trim(aws.ToString(out.ETag), `"`), nil
}

// Exists implements FileSystem.
func (f *S3FS) Exists(ctx context.Context, res resource.Resource) (bool, error) {
	_, err := f.head(ctx, res)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		// A "directory" exists when any key lives under the prefix.
		return f.IsDir(ctx, res)
	}
	return false, err
}

// IsDir reports whether any object exists under the "res/" prefix.
func (f *S3FS) IsDir(ctx context.Context, res resource.Resource) (bool, error) {
	bucket, key := splitBucket(res)
	prefix := strings.TrimSuffix(key, "/") + "/"
	out, err := f.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0, nil
}

// IsFile implements FileSystem.
func (f *S3FS) IsFile(ctx context.Context, res resource.Resource) (bool, error) {
	_, err := f.head(ctx, res)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}

// Info implements FileSystem.
func (f *S3FS) Info(ctx context.Context, res resource.Resource) (*Info, error) {
	out, err := f.head(ctx, res)
	if err != nil {
		return nil, err
	}
	return &Info{
		Size:     aws.ToInt64(out.ContentLength),
		Mtime:    aws.ToTime(out.LastModified),
		Checksum: strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// WalkFiles yields every object under root lazily, one page at a time.
func (f *S3FS) WalkFiles(ctx context.Context, root resource.Resource) iter.Seq2[resource.Resource, error] {
	bucket, key := splitBucket(root)
	prefix := strings.TrimSuffix(key, "/") + "/"
	return func(yield func(resource.Resource, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(bucket),
			Prefix: aws.String(prefix),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(resource.Resource{}, fmt.Errorf("listing s3://%s/%s: %w", bucket, prefix, err))
				return
			}
			for _, obj := range page.Contents {
				res := resource.New("s3", bucket+"/"+aws.ToString(obj.Key))
				if !yield(res, nil) {
					return
				}
			}
		}
	}
}

// Ls lists immediate children of a prefix using a delimiter.
func (f *S3FS) Ls(ctx context.Context, res resource.Resource, detail bool) ([]Entry, error) {
	bucket, key := splitBucket(res)
	prefix := ""
	if key != "" {
		prefix = strings.TrimSuffix(key, "/") + "/"
	}

	var out []Entry
	paginator := s3.NewListObjectsV2Paginator(f.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			out = append(out, Entry{
				Resource: resource.New("s3", bucket+"/"+aws.ToString(cp.Prefix)),
			})
		}
		for _, obj := range page.Contents {
			entry := Entry{Resource: resource.New("s3", bucket+"/"+aws.ToString(obj.Key))}
			if detail {
				entry.Info = &Info{
					Size:     aws.ToInt64(obj.Size),
					Mtime:    aws.ToTime(obj.LastModified),
					Checksum: strings.Trim(aws.ToString(obj.ETag), `"`),
				}
			}
			out = append(out, entry)
		}
	}
	return out, nil
}

// Find lists every object under res, optionally restricted to keys whose
// path relative to res begins with prefix.
func (f *S3FS) Find(ctx context.Context, res resource.Resource, detail bool, prefix string) ([]Entry, error) {
	var out []Entry
	for file, err := range f.WalkFiles(ctx, res) {
		if err != nil {
			return nil, err
		}
		if prefix != "" {
			rel, err := file.RelativeTo(res)
			if err != nil || !strings.HasPrefix(rel, prefix) {
				continue
			}
		}
		entry := Entry{Resource: file}
		if detail {
			info, err := f.Info(ctx, file)
			if err != nil {
				return nil, err
			}
			entry.Info = info
		}
		out = append(out, entry)
	}
	return out, nil
}

// Open streams the object body.
func (f *S3FS) Open(ctx context.Context, res resource.Resource) (io.ReadCloser, error) {
	bucket, key := splitBucket(res)
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", res, err)
	}
	return out.Body, nil
}

// Remove deletes one object.
func (f *S3FS) Remove(ctx context.Context, res resource.Resource) error {
	bucket, key := splitBucket(res)
	_, err := f.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("removing %s: %w", res, err)
	}
	return nil
}

// MakeDirs is a no-op: object stores have no directories to create.
func (f *S3FS) MakeDirs(context.Context, resource.Resource) error { return nil }

// Copy performs a server-side object copy; no bytes travel through this
// process.
func (f *S3FS) Copy(ctx context.Context, from, to resource.Resource) error {
	fromBucket, fromKey := splitBucket(from)
	toBucket, toKey := splitBucket(to)
	_, err := f.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(toBucket),
		Key:        aws.String(toKey),
		CopySource: aws.String(fromBucket + "/" + fromKey),
	})
	if err != nil {
		return fmt.Errorf("copying %s to %s: %w", from, to, err)
	}
	return nil
}

// GetFile downloads one object into a local path.
func (f *S3FS) GetFile(ctx context.Context, from resource.Resource, localDst string, cb progress.Callback) error {
	bucket, key := splitBucket(from)
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("downloading %s: %w", from, err)
	}
	defer out.Body.Close()

	if out.ContentLength != nil {
		cb.SetSize(aws.ToInt64(out.ContentLength))
	}
	return writeFileFrom(progress.NewCallbackReader(out.Body, cb), localDst)
}

// PutFile uploads one local file to an object.
func (f *S3FS) PutFile(ctx context.Context, localSrc string, to resource.Resource, cb progress.Callback) error {
	src, err := os.Open(localSrc)
	if err != nil {
		return err
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return err
	}
	cb.SetSize(info.Size())

	body := io.Reader(progress.NewCallbackReader(src, cb))
	if f.maxBandwidth > 0 {
		body = newThrottledReader(body, f.maxBandwidth)
	}

	bucket, key := splitBucket(to)
	_, err = f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return fmt.Errorf("uploading to %s: %w", to, err)
	}
	return nil
}

// UploadStream uploads an in-memory stream. When the size hint is unknown
// the stream is buffered first; S3 needs a content length.
func (f *S3FS) UploadStream(ctx context.Context, r io.Reader, to resource.Resource, size int64) error {
	if size < 0 {
		buf, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("buffering stream for %s: %w", to, err)
		}
		return f.UploadStream(ctx, strings.NewReader(string(buf)), to, int64(len(buf)))
	}

	body := r
	if f.maxBandwidth > 0 {
		body = newThrottledReader(r, f.maxBandwidth)
	}
	bucket, key := splitBucket(to)
	_, err := f.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("uploading to %s: %w", to, err)
	}
	return nil
}

// throttledReader limits read bandwidth to a fixed bytes-per-second rate.
type throttledReader struct {
	reader      io.Reader
	bytesPerSec int64
	start       time.Time
	bytesRead   int64
}

func newThrottledReader(r io.Reader, bytesPerSec int64) *throttledReader {
	return &throttledReader{
		reader:      r,
		bytesPerSec: bytesPerSec,
		start:       time.Now(),
	}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	elapsed := time.Since(t.start)
	expected := time.Duration(float64(t.bytesRead) / float64(t.bytesPerSec) * float64(time.Second))
	if expected > elapsed {
		time.Sleep(expected - elapsed)
	}

	n, err := t.reader.Read(p)
	t.bytesRead += int64(n)
	return n, err
}
