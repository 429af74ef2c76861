// 包 archive：每次同步的原始设施快照写入 S3 兼容存储（MinIO），用于回溯与重放
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"toilet-finder/internal/config"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/model"
)

// snapshot：归档对象内容
type snapshot struct {
	Job        string           `json:"job"`
	FetchedAt  time.Time        `json:"fetchedAt"`
	Count      int              `json:"count"`
	Facilities []model.Facility `json:"facilities"`
}

type Store struct {
	client *minio.Client
	bucket string
}

// Open：创建客户端并确保桶存在
func Open(ctx context.Context, c config.S3) (*Store, error) {
	mc, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKey, c.SecretKey, ""),
		Secure: c.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	s := &Store{client: mc, bucket: c.Bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	logger.L().Info("archive_ready", "endpoint", c.Endpoint, "bucket", c.Bucket)
	return s, nil
}

func (s *Store) ensureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// objectKey：snapshots/<job>/<yyyy>/<mm>/<dd>/<hhmmss>.json，按 UTC 分目录
func objectKey(job string, at time.Time) string {
	job = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(job), " ", "-"))
	if job == "" {
		job = "unknown"
	}
	return fmt.Sprintf("snapshots/%s/%s.json", job, at.UTC().Format("2006/01/02/150405"))
}

// Archive：写入一份快照并返回对象 key
func (s *Store) Archive(ctx context.Context, job string, at time.Time, fs []model.Facility) (string, error) {
	b, err := json.Marshal(snapshot{Job: job, FetchedAt: at, Count: len(fs), Facilities: fs})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := objectKey(job, at)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(b), int64(len(b)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	logger.L().Info("archive_put", "bucket", s.bucket, "key", key, "count", len(fs), "bytes", len(b))
	return key, nil
}
