package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cliptray/cliptrayd/internal/apperror"
)

var _ EntryStore = (*S3Store)(nil)

// S3Config holds the settings for the entry store bucket. BaseEndpoint is
// set when running against MinIO or another S3-compatible service.
type S3Config struct {
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// S3Store keeps one JSON object per entry under
// orgs/{organization}/entries/{server_id}.json.
type S3Store struct {
	client *s3.Client
	bucket string
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("cloud: loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{client: client, bucket: cfg.Bucket}, nil
}

func entryKey(orgID, serverID string) string {
	return fmt.Sprintf("orgs/%s/entries/%s.json", orgID, serverID)
}

func entryPrefix(orgID string) string {
	return fmt.Sprintf("orgs/%s/entries/", orgID)
}

func (s *S3Store) Put(ctx context.Context, entry RemoteEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("cloud: encoding entry %s: %w", entry.ServerID, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(entryKey(entry.OrganizationID, entry.ServerID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("cloud: putting entry %s: %w", entry.ServerID, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, orgID, serverID string) (*RemoteEntry, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(entryKey(orgID, serverID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, apperror.NotFound("remote entry", serverID)
		}
		return nil, fmt.Errorf("cloud: getting entry %s: %w", serverID, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("cloud: reading entry %s: %w", serverID, err)
	}
	var entry RemoteEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return nil, fmt.Errorf("cloud: decoding entry %s: %w", serverID, err)
	}
	return &entry, nil
}

// List fetches every remote entry for the organization. The pull side of a
// sync walks the full prefix; history sizes stay small enough for that.
func (s *S3Store) List(ctx context.Context, orgID string) ([]RemoteEntry, error) {
	var entries []RemoteEntry

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(entryPrefix(orgID)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("cloud: listing entries: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			serverID := strings.TrimSuffix(strings.TrimPrefix(key, entryPrefix(orgID)), ".json")
			entry, err := s.Get(ctx, orgID, serverID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					continue
				}
				return nil, err
			}
			entries = append(entries, *entry)
		}
	}
	return entries, nil
}

func (s *S3Store) Delete(ctx context.Context, orgID, serverID string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(entryKey(orgID, serverID)),
	})
	if err != nil {
		return fmt.Errorf("cloud: deleting entry %s: %w", serverID, err)
	}
	return nil
}
