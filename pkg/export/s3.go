package export

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go/logging"
	"github.com/glimps-re/defhost/pkg/datamodel"
)

var LogLevel = &slog.LevelVar{}

var logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LogLevel,
}))

var ErrNoBucket = errors.New("export bucket is required")

// Uploader stores a report somewhere outside the host.
type Uploader interface {
	Upload(ctx context.Context, report datamodel.Report) (key string, err error)
}

// S3Client abstracts the S3 client methods we use
type S3Client interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds the configuration for S3/Minio client
type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Insecure        bool   `mapstructure:"insecure"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	CreateBucket    bool   `mapstructure:"create_bucket"`
}

// S3Exporter uploads reports as JSON objects to an S3 compatible storage.
type S3Exporter struct {
	client S3Client
	config S3Config
}

var _ Uploader = &S3Exporter{}

// noOpLogger implements logging.Logger and discards all logs
type noOpLogger struct{}

func (noOpLogger) Logf(logging.Classification, string, ...any) {}

func NewS3Exporter(ctx context.Context, cfg S3Config) (exporter *S3Exporter, err error) {
	if cfg.Bucket == "" {
		err = ErrNoBucket
		return
	}

	var opts []func(*config.LoadOptions) error

	// Disable SDK Log
	opts = append(opts, config.WithClientLogMode(0), config.WithLogger(noOpLogger{}))

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.Insecure {
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true, //nolint:gosec // Configuration choose by user
				},
			},
		}
		opts = append(opts, config.WithHTTPClient(httpClient))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		err = fmt.Errorf("could not load s3 configuration: %w", err)
		return
	}

	clientOpts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
			o.ClientLogMode = 0
			o.Logger = noOpLogger{}
		},
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	exporter = newS3Exporter(s3.NewFromConfig(awsCfg, clientOpts...), cfg)
	return
}

func newS3Exporter(client S3Client, cfg S3Config) *S3Exporter {
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &S3Exporter{
		client: client,
		config: cfg,
	}
}

const keyTimeFormat = "20060102T150405Z"

// Key returns <prefix>/<hostname>/<kind>-<timestamp>.json for report.
func (e *S3Exporter) Key(report datamodel.Report) string {
	name := fmt.Sprintf("%s-%s.json", report.Kind, report.Generated.UTC().Format(keyTimeFormat))
	return path.Join(e.config.Prefix, report.Hostname, name)
}

func (e *S3Exporter) Upload(ctx context.Context, report datamodel.Report) (key string, err error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		err = fmt.Errorf("could not encode report: %w", err)
		return
	}
	if e.config.CreateBucket {
		if err = e.ensureBucketExists(ctx); err != nil {
			err = fmt.Errorf("could not create bucket %s: %w", e.config.Bucket, err)
			return
		}
	}
	key = e.Key(report)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		err = fmt.Errorf("could not upload report to %s/%s: %w", e.config.Bucket, key, err)
		return
	}
	logger.Info("report exported", slog.String("bucket", e.config.Bucket), slog.String("key", key))
	return
}

func (e *S3Exporter) ensureBucketExists(ctx context.Context) (err error) {
	_, err = e.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(e.config.Bucket),
	})
	respErr := new(awshttp.ResponseError)
	awsRespErr := new(types.NotFound)
	switch {
	case err == nil:
		return
	case errors.As(err, &respErr) && respErr.Response.StatusCode == http.StatusNotFound, errors.As(err, &awsRespErr):
		_, err = e.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(e.config.Bucket),
		})
		bae := new(types.BucketAlreadyExists)
		baoby := new(types.BucketAlreadyOwnedByYou)
		if errors.As(err, &bae) || errors.As(err, &baoby) {
			err = nil
		}
		return
	default:
		return
	}
}
