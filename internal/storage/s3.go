package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"interview-proctor/internal/protocol"
)

// ObjectAPI - часть s3.Client, которой пользуется архив
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Archive сохраняет отчеты в S3 совместимый бакет (AWS, R2, MinIO)
type S3Archive struct {
	client ObjectAPI
	bucket string
	prefix string
}

func NewS3Archive(client ObjectAPI, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, prefix: "reports/"}
}

// NewS3Client создает клиента со статическими ключами и, если задан, своим endpoint
func NewS3Client(ctx context.Context, endpoint, region, keyID, secret string) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(keyID, secret, "")),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (a *S3Archive) key(sessionID string) string {
	return a.prefix + reportName(sessionID)
}

func (a *S3Archive) SaveResult(ctx context.Context, result *protocol.Result) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.key(result.SessionID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// LoadResult читает отчет обратно из бакета
func (a *S3Archive) LoadResult(ctx context.Context, sessionID string) (*protocol.Result, error) {
	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(a.key(sessionID)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}
	var result protocol.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &result, nil
}
