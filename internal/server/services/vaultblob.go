package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/passport/internal/common"
	sc "github.com/dmitrijs2005/passport/internal/server/config"
	"github.com/dmitrijs2005/passport/internal/server/models"
	"github.com/dmitrijs2005/passport/internal/server/repositories/blobs"
	"github.com/dmitrijs2005/passport/internal/server/repositories/repomanager"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const presignExpiry = 15 * time.Minute

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// BlobDownload points at the latest completed vault blob.
type BlobDownload struct {
	Version int64  `json:"version"`
	URL     string `json:"url"`
}

// VaultBlobService hands out presigned object storage URLs for the
// client-sealed vault blob. The server never reads or writes the blob itself.
type VaultBlobService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	config      *sc.Config
	now         func() time.Time
}

func NewVaultBlobService(db *sql.DB, repomanager repomanager.RepositoryManager, config *sc.Config) *VaultBlobService {
	return &VaultBlobService{
		db:          db,
		repomanager: repomanager,
		config:      config,
		now:         time.Now,
	}
}

// StorageKey returns a fresh object key for a vault version of userID.
func StorageKey(userID string, d time.Time) string {
	return fmt.Sprintf("vaults/%s/%d/%02d/%02d/%v", userID, d.Year(), d.Month(), d.Day(), uuid.New())
}

func (s *VaultBlobService) getPresignClient(ctx context.Context) (*s3.PresignClient, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return newS3PresignClient(client), nil
}

// UploadURL reserves the next vault version and returns where to PUT it.
// The version stays pending until ConfirmUpload.
func (s *VaultBlobService) UploadURL(ctx context.Context, userID string) (*models.BlobUploadTask, error) {
	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: presign client: %w", common.ErrExternalService, err)
	}

	bucket := s.config.S3Bucket
	key := StorageKey(userID, s.now())

	req, err := presignPutObject(presignClient, ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, fmt.Errorf("%w: presign put: %w", common.ErrExternalService, err)
	}

	blob, err := s.repomanager.Blobs(s.db).BeginUpload(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	return &models.BlobUploadTask{Version: blob.Version, URL: req.URL}, nil
}

// ConfirmUpload marks version as uploaded. Only the latest reserved version
// can be confirmed.
func (s *VaultBlobService) ConfirmUpload(ctx context.Context, userID string, version int64) error {
	return s.repomanager.Blobs(s.db).MarkUploaded(ctx, userID, version)
}

// DownloadURL returns a presigned GET for the user's vault blob. A blob
// whose latest upload is still pending is reported as not found.
func (s *VaultBlobService) DownloadURL(ctx context.Context, userID string) (*BlobDownload, error) {
	blob, err := s.repomanager.Blobs(s.db).Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if blob.UploadStatus != blobs.StatusCompleted {
		return nil, common.ErrorNotFound
	}

	presignClient, err := s.getPresignClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: presign client: %w", common.ErrExternalService, err)
	}
	bucket := s.config.S3Bucket
	req, err := presignGetObject(presignClient, ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &blob.StorageKey,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return nil, fmt.Errorf("%w: presign get: %w", common.ErrExternalService, err)
	}
	return &BlobDownload{Version: blob.Version, URL: req.URL}, nil
}
