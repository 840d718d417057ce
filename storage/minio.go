// Package storage uploads track audio to MinIO and hands back object URLs as
// playable locators.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"PlayDeck/config"
	"PlayDeck/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectPrefix = "tracks"

// BlobMaterializer stores audio bytes under their content hash, so adding the
// same file twice uploads it once.
type BlobMaterializer struct {
	client *minio.Client
	bucket string
}

// ConnectMinio 初始化MinIO客户端，存储桶不存在时创建
func ConnectMinio(ctx context.Context, cfg *config.Config) (*BlobMaterializer, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	logger.Info("connected to MinIO",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return &BlobMaterializer{client: client, bucket: cfg.MinioBucket}, nil
}

// ObjectName is the content-addressed key for data uploaded as name.
func ObjectName(name string, data []byte) string {
	sum := sha256.Sum256(data)
	return path.Join(objectPrefix, hex.EncodeToString(sum[:])+strings.ToLower(path.Ext(name)))
}

// Materialize uploads data unless an object with the same content exists and
// returns the object URL.
func (b *BlobMaterializer) Materialize(ctx context.Context, name, contentType string, data []byte) (string, error) {
	object := ObjectName(name, data)

	if _, err := b.client.StatObject(ctx, b.bucket, object, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return "", fmt.Errorf("failed to stat %s: %w", object, err)
		}
		_, err = b.client.PutObject(ctx, b.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType:  contentType,
			UserMetadata: map[string]string{"name": name},
		})
		if err != nil {
			return "", fmt.Errorf("failed to upload %s: %w", name, err)
		}
		logger.Debug("uploaded track", logger.String("name", name), logger.String("object", object))
	}

	return b.URL(object), nil
}

// URL 获取对象的访问地址
func (b *BlobMaterializer) URL(object string) string {
	u := *b.client.EndpointURL()
	u.Path = path.Join("/", b.bucket, object)
	return u.String()
}
