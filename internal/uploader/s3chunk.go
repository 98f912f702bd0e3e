package uploader

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	filmbox_errors "filmbox/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures the multipart transport against S3-compatible storage.
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
	// PartSize must be at least 5 MiB for every part but the last.
	PartSize int64
}

// NewS3Client builds an S3 client for the multipart transport.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 region and bucket are required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewS3Factory returns a factory producing multipart transports. Each chunk is
// an UploadPart call; resuming lists the parts the store already holds so no
// finished part is sent twice.
func NewS3Factory(client *s3.Client, bucket string, partSize int64) TransportFactory {
	if partSize < 5*1024*1024 {
		partSize = 5 * 1024 * 1024
	}
	return func(uploadID string, src io.ReaderAt, size int64, cb Callbacks) ChunkTransport {
		return &s3Transport{
			client:   client,
			bucket:   bucket,
			key:      "uploads/" + uploadID,
			partSize: partSize,
			uploadID: uploadID,
			src:      src,
			size:     size,
			cb:       cb,
		}
	}
}

type s3Transport struct {
	client   *s3.Client
	bucket   string
	key      string
	partSize int64
	uploadID string
	src      io.ReaderAt
	size     int64
	cb       Callbacks

	mu          sync.Mutex
	multipartID string
	parts       []types.CompletedPart
	offset      int64
	paused      bool
	running     bool
	done        bool
}

func (t *s3Transport) Start(ctx context.Context) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		if t.cb.OnError != nil {
			t.cb.OnError(filmbox_errors.ErrTransportDone)
		}
		return
	}
	if t.running {
		t.mu.Unlock()
		return
	}
	t.paused = false
	t.running = true
	t.mu.Unlock()

	go t.run(ctx)
}

func (t *s3Transport) Pause() {
	t.mu.Lock()
	t.paused = true
	t.mu.Unlock()
}

func (t *s3Transport) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

func (t *s3Transport) run(ctx context.Context) {
	if err := t.ensureMultipart(ctx); err != nil {
		t.fail(err)
		return
	}

	for {
		t.mu.Lock()
		if t.paused {
			t.running = false
			t.mu.Unlock()
			return
		}
		offset := t.offset
		partNumber := int32(len(t.parts)) + 1
		t.mu.Unlock()

		if offset >= t.size {
			break
		}

		n := t.partSize
		if remaining := t.size - offset; remaining < n {
			n = remaining
		}

		out, err := t.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        aws.String(t.bucket),
			Key:           aws.String(t.key),
			UploadId:      aws.String(t.multipartID),
			PartNumber:    aws.Int32(partNumber),
			Body:          io.NewSectionReader(t.src, offset, n),
			ContentLength: aws.Int64(n),
		})
		if err != nil {
			t.fail(err)
			return
		}

		t.mu.Lock()
		t.parts = append(t.parts, types.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int32(partNumber),
		})
		t.offset = offset + n
		uploaded := t.offset
		t.mu.Unlock()

		if t.cb.OnProgress != nil {
			t.cb.OnProgress(uploaded, t.size)
		}
	}

	t.mu.Lock()
	parts := make([]types.CompletedPart, len(t.parts))
	copy(parts, t.parts)
	t.mu.Unlock()

	_, err := t.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(t.bucket),
		Key:             aws.String(t.key),
		UploadId:        aws.String(t.multipartID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		t.fail(err)
		return
	}

	t.mu.Lock()
	t.done = true
	t.running = false
	t.mu.Unlock()
	if t.cb.OnSuccess != nil {
		t.cb.OnSuccess()
	}
}

// ensureMultipart finds the multipart upload already open for this key, or
// creates one. Recovering an existing upload replays its part list so the
// offset continues where the last process stopped.
func (t *s3Transport) ensureMultipart(ctx context.Context) error {
	t.mu.Lock()
	id := t.multipartID
	t.mu.Unlock()
	if id != "" {
		return nil
	}

	listed, err := t.client.ListMultipartUploads(ctx, &s3.ListMultipartUploadsInput{
		Bucket: aws.String(t.bucket),
		Prefix: aws.String(t.key),
	})
	if err != nil {
		return err
	}
	for _, u := range listed.Uploads {
		if aws.ToString(u.Key) == t.key {
			return t.recoverParts(ctx, aws.ToString(u.UploadId))
		}
	}

	created, err := t.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:   aws.String(t.bucket),
		Key:      aws.String(t.key),
		Metadata: map[string]string{"upload-id": t.uploadID},
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.multipartID = aws.ToString(created.UploadId)
	t.mu.Unlock()
	return nil
}

func (t *s3Transport) recoverParts(ctx context.Context, multipartID string) error {
	out, err := t.client.ListParts(ctx, &s3.ListPartsInput{
		Bucket:   aws.String(t.bucket),
		Key:      aws.String(t.key),
		UploadId: aws.String(multipartID),
	})
	if err != nil {
		return err
	}

	parts := make([]types.CompletedPart, 0, len(out.Parts))
	var offset int64
	for _, p := range out.Parts {
		parts = append(parts, types.CompletedPart{
			ETag:       p.ETag,
			PartNumber: p.PartNumber,
		})
		offset += aws.ToInt64(p.Size)
	}
	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})

	t.mu.Lock()
	t.multipartID = multipartID
	t.parts = parts
	t.offset = offset
	t.mu.Unlock()
	return nil
}

func (t *s3Transport) fail(err error) {
	t.mu.Lock()
	t.running = false
	t.paused = true
	t.mu.Unlock()
	if t.cb.OnError != nil {
		t.cb.OnError(fmt.Errorf("%w: %v", filmbox_errors.ErrTransport, err))
	}
}
