package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/glimps-re/defhost/pkg/datamodel"
	"github.com/google/go-cmp/cmp"
)

type S3ClientMock struct {
	HeadBucketMock   func(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucketMock func(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObjectMock    func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

func (m *S3ClientMock) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if m.HeadBucketMock != nil {
		return m.HeadBucketMock(ctx, params, optFns...)
	}
	panic("S3ClientMock.HeadBucket() not implemented in current test")
}

func (m *S3ClientMock) CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if m.CreateBucketMock != nil {
		return m.CreateBucketMock(ctx, params, optFns...)
	}
	panic("S3ClientMock.CreateBucket() not implemented in current test")
}

func (m *S3ClientMock) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.PutObjectMock != nil {
		return m.PutObjectMock(ctx, params, optFns...)
	}
	panic("S3ClientMock.PutObject() not implemented in current test")
}

func testReport() datamodel.Report {
	return datamodel.Report{
		Kind:      datamodel.ScanReport,
		Hostname:  "desktop-01",
		Generated: time.Date(2026, 3, 2, 10, 4, 5, 0, time.UTC),
		ScanType:  datamodel.QuickScan,
		Scan:      &datamodel.ScanResult{ThreatsFound: 1, FilesScanned: 50000, ScanTime: "12.34s"},
	}
}

func TestS3Exporter_Key(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{prefix: "", want: "desktop-01/scan-20260302T100405Z.json"},
		{prefix: "reports", want: "reports/desktop-01/scan-20260302T100405Z.json"},
		{prefix: "/defender/reports/", want: "defender/reports/desktop-01/scan-20260302T100405Z.json"},
	}
	for _, tt := range tests {
		e := newS3Exporter(&S3ClientMock{}, S3Config{Bucket: "bucket", Prefix: tt.prefix})
		if got := e.Key(testReport()); got != tt.want {
			t.Errorf("Key() with prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestS3Exporter_Upload(t *testing.T) {
	tests := []struct {
		name string
		test func(t *testing.T)
	}{
		{
			name: "ok",
			test: func(t *testing.T) {
				var put *s3.PutObjectInput
				var body []byte
				client := &S3ClientMock{
					PutObjectMock: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
						put = params
						var err error
						body, err = io.ReadAll(params.Body)
						return &s3.PutObjectOutput{}, err
					},
				}
				e := newS3Exporter(client, S3Config{Bucket: "defhost", Prefix: "reports"})
				key, err := e.Upload(t.Context(), testReport())
				if err != nil {
					t.Fatalf("Upload() unexpected error: %v", err)
				}
				if key != "reports/desktop-01/scan-20260302T100405Z.json" {
					t.Errorf("Upload() key = %q", key)
				}
				if aws.ToString(put.Bucket) != "defhost" || aws.ToString(put.Key) != key || aws.ToString(put.ContentType) != "application/json" {
					t.Errorf("PutObject() input = %s %s %s", aws.ToString(put.Bucket), aws.ToString(put.Key), aws.ToString(put.ContentType))
				}
				var got datamodel.Report
				if err := json.Unmarshal(body, &got); err != nil {
					t.Fatalf("uploaded body is not a report: %v", err)
				}
				if diff := cmp.Diff(testReport(), got); diff != "" {
					t.Errorf("uploaded report mismatch (-want +got):\n%s", diff)
				}
			},
		},
		{
			name: "create bucket",
			test: func(t *testing.T) {
				created := ""
				client := &S3ClientMock{
					HeadBucketMock: func(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
						return nil, &types.NotFound{}
					},
					CreateBucketMock: func(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
						created = aws.ToString(params.Bucket)
						return &s3.CreateBucketOutput{}, nil
					},
					PutObjectMock: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
						return &s3.PutObjectOutput{}, nil
					},
				}
				e := newS3Exporter(client, S3Config{Bucket: "defhost", CreateBucket: true})
				if _, err := e.Upload(t.Context(), testReport()); err != nil {
					t.Fatalf("Upload() unexpected error: %v", err)
				}
				if created != "defhost" {
					t.Errorf("CreateBucket() called with %q", created)
				}
			},
		},
		{
			name: "bucket already owned",
			test: func(t *testing.T) {
				client := &S3ClientMock{
					HeadBucketMock: func(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
						return nil, &types.NotFound{}
					},
					CreateBucketMock: func(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
						return nil, &types.BucketAlreadyOwnedByYou{}
					},
					PutObjectMock: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
						return &s3.PutObjectOutput{}, nil
					},
				}
				e := newS3Exporter(client, S3Config{Bucket: "defhost", CreateBucket: true})
				if _, err := e.Upload(t.Context(), testReport()); err != nil {
					t.Fatalf("Upload() unexpected error: %v", err)
				}
			},
		},
		{
			name: "put error",
			test: func(t *testing.T) {
				errDenied := errors.New("access denied")
				client := &S3ClientMock{
					PutObjectMock: func(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
						return nil, errDenied
					},
				}
				e := newS3Exporter(client, S3Config{Bucket: "defhost"})
				if _, err := e.Upload(t.Context(), testReport()); !errors.Is(err, errDenied) {
					t.Errorf("Upload() error = %v, want %v", err, errDenied)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.test)
	}
}

func TestNewS3Exporter(t *testing.T) {
	if _, err := NewS3Exporter(t.Context(), S3Config{}); !errors.Is(err, ErrNoBucket) {
		t.Errorf("NewS3Exporter() error = %v, want %v", err, ErrNoBucket)
	}
	e, err := NewS3Exporter(t.Context(), S3Config{
		Bucket:          "defhost",
		Region:          "us-east-1",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "minio",
		SecretAccessKey: "minio123",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("NewS3Exporter() unexpected error: %v", err)
	}
	if e.client == nil {
		t.Errorf("NewS3Exporter() client not set")
	}
}
