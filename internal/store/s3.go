package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"framelabel/internal/util/jsonutil"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3Store writes one JSON object per record under <prefix><category>/.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	prefix     string

	mu       sync.Mutex
	initOnce sync.Once
	initErr  error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
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
		Creds:  credentials.NewStaticV4(access, secret, ""),
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
		prefix:     normalizePrefix(cfg.Prefix),
	}, nil
}

func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return ErrNilStore
	}
	s.initOnce.Do(func() {
		ctx := context.WithoutCancel(ctx)
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

// objectKey is <prefix><category>/<sha256(id)>.json.
func objectKey(prefix string, c Category, id string) string {
	sum := sha256.Sum256([]byte(NormalizeID(id)))
	return prefix + string(c) + "/" + hex.EncodeToString(sum[:16]) + ".json"
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}

// locate finds the stream holding id.
func (s *S3Store) locate(ctx context.Context, id string) (Category, bool, error) {
	for _, c := range Categories {
		_, err := s.client.StatObject(ctx, s.bucketName, objectKey(s.prefix, c, id), minio.StatObjectOptions{})
		if err == nil {
			return c, true, nil
		}
		if !isNoSuchKey(err) {
			return "", false, err
		}
	}
	return "", false, nil
}

// Append checks every stream before writing; concurrent appends within one
// process are serialized.
func (s *S3Store) Append(ctx context.Context, rec Record) error {
	if s == nil {
		return ErrNilStore
	}
	if err := rec.validate(); err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	body, err := jsonutil.MarshalNoEscape(rec)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok, err := s.locate(ctx, rec.ID()); err != nil {
		return err
	} else if ok {
		return ErrDuplicate
	}
	_, err = s.client.PutObject(ctx, s.bucketName, objectKey(s.prefix, rec.Category, rec.ID()), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (s *S3Store) Has(ctx context.Context, id string) (bool, error) {
	if s == nil {
		return false, ErrNilStore
	}
	if err := s.ensureBucket(ctx); err != nil {
		return false, fmt.Errorf("ensure bucket: %w", err)
	}
	_, ok, err := s.locate(ctx, id)
	return ok, err
}

func (s *S3Store) Get(ctx context.Context, id string) (Record, error) {
	if s == nil {
		return Record{}, ErrNilStore
	}
	if err := s.ensureBucket(ctx); err != nil {
		return Record{}, fmt.Errorf("ensure bucket: %w", err)
	}
	c, ok, err := s.locate(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.read(ctx, objectKey(s.prefix, c, id))
}

func (s *S3Store) read(ctx context.Context, key string) (Record, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return Record{}, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("store: decode record: %w", err)
	}
	return rec, nil
}

// List reads every object under the stream's prefix, in key order.
func (s *S3Store) List(ctx context.Context, c Category) ([]Record, error) {
	if s == nil {
		return nil, ErrNilStore
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	var out []Record
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    s.prefix + string(c) + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		rec, err := s.read(ctx, obj.Key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Replace writes rec under its category and removes the object it came from.
func (s *S3Store) Replace(ctx context.Context, rec Record) error {
	if s == nil {
		return ErrNilStore
	}
	if err := rec.validate(); err != nil {
		return err
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	body, err := jsonutil.MarshalNoEscape(rec)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok, err := s.locate(ctx, rec.ID())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	_, err = s.client.PutObject(ctx, s.bucketName, objectKey(s.prefix, rec.Category, rec.ID()), bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil || old == rec.Category {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucketName, objectKey(s.prefix, old, rec.ID()), minio.RemoveObjectOptions{})
}

// Stats lists each stream's prefix.
func (s *S3Store) Stats(ctx context.Context) (Stats, error) {
	if s == nil {
		return Stats{}, ErrNilStore
	}
	if err := s.ensureBucket(ctx); err != nil {
		return Stats{}, fmt.Errorf("ensure bucket: %w", err)
	}
	var st Stats
	for _, c := range Categories {
		for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
			Prefix:    s.prefix + string(c) + "/",
			Recursive: true,
		}) {
			if obj.Err != nil {
				return Stats{}, obj.Err
			}
			if strings.HasSuffix(obj.Key, ".json") {
				st.Add(c, 1)
			}
		}
	}
	return st, nil
}

func (s *S3Store) Close() error { return nil }
