package mirror

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/keithlinneman/playable-preview/internal/log"
	"github.com/keithlinneman/playable-preview/internal/pathutil"
	"github.com/keithlinneman/playable-preview/internal/xerrors"
)

// PutObjectAPI is the subset of the S3 client used here.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Options struct {
	Logger log.Logger

	// Objects are written to s3://{Bucket}/{Prefix}/{id}/{filename}
	Bucket string
	Prefix string

	// AWS config (uses default if nil); ignored when Client is set
	AWSConfig *aws.Config
	Client    PutObjectAPI
}

type S3 struct {
	opts   S3Options
	client PutObjectAPI
	logger log.Logger
}

// NewS3 creates an S3 mirror.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, xerrors.New("Bucket is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	opts.Prefix = strings.Trim(opts.Prefix, "/")

	client := opts.Client
	if client == nil {
		var awsCfg aws.Config
		var err error
		if opts.AWSConfig != nil {
			awsCfg = *opts.AWSConfig
		} else {
			awsCfg, err = config.LoadDefaultConfig(ctx)
			if err != nil {
				return nil, xerrors.Wrap(err, "load AWS config")
			}
		}
		client = s3.NewFromConfig(awsCfg)
	}

	return &S3{opts: opts, client: client, logger: opts.Logger}, nil
}

// key returns the object key for obj
func (m *S3) key(obj Object) string {
	name := pathutil.SanitizeName(obj.Filename, 100)
	if name == "" {
		name = "upload"
	}
	if m.opts.Prefix != "" {
		return path.Join(m.opts.Prefix, obj.ID, name)
	}
	return path.Join(obj.ID, name)
}

// Put uploads the staged file with its SHA-256 so S3 verifies the body.
func (m *S3) Put(ctx context.Context, obj Object) error {
	if !pathutil.IsSafeIdentifier(obj.ID) {
		return xerrors.Newf("invalid playable id %q", obj.ID)
	}
	key := m.key(obj)

	f, err := os.Open(obj.Path)
	if err != nil {
		return xerrors.Wrap(err, "open staged upload")
	}
	defer f.Close()

	in := &s3.PutObjectInput{
		Bucket:        aws.String(m.opts.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(contentType(obj.Kind)),
		Metadata: map[string]string{
			"playable-id": obj.ID,
			"kind":        obj.Kind,
		},
	}
	if sum, err := hex.DecodeString(obj.SHA256); err == nil && len(sum) == 32 {
		in.ChecksumSHA256 = aws.String(base64.StdEncoding.EncodeToString(sum))
		in.Metadata["sha256"] = obj.SHA256
	}

	if _, err := m.client.PutObject(ctx, in); err != nil {
		return xerrors.Wrapf(err, "put S3 object s3://%s/%s", m.opts.Bucket, key)
	}

	m.logger.Info(ctx, "mirrored upload",
		"bucket", m.opts.Bucket,
		"key", key,
		"bytes", obj.Size,
	)
	return nil
}

func contentType(kind string) string {
	switch kind {
	case "zip":
		return "application/zip"
	case "html":
		return "text/html; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
