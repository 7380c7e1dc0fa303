package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"helioscope/internal/common"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Prefix    string
}

// S3Store writes JSON documents to an S3-compatible bucket
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
		prefix:     strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// ResultKey returns the object key of a single result
func (s *S3Store) ResultKey(sampleID string) string {
	return path.Join(s.prefix, "results", "helioscope_"+safeName(sampleID)+".json")
}

// BatchKey returns a fresh object key for a batch save
func (s *S3Store) BatchKey(name string, now time.Time) string {
	return path.Join(s.prefix, "batches", safeName(name), common.FormatFileStamp(now)+"-"+uuid.NewString()+".json")
}

func (s *S3Store) SaveResult(ctx context.Context, record common.ExportRecord) error {
	if record.SampleID == "" {
		return fmt.Errorf("record has no sample id")
	}
	return s.putJSON(ctx, s.ResultKey(record.SampleID), record)
}

func (s *S3Store) SaveBatch(ctx context.Context, name string, results []common.BatchResult) error {
	now := time.Now()
	return s.putJSON(ctx, s.BatchKey(name, now), newBatchDocument(name, results, now))
}

func (s *S3Store) putJSON(ctx context.Context, key string, v any) error {
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", s.bucketName, err)
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Close() error {
	return nil
}
