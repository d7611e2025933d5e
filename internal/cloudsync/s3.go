package cloudsync

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
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dgnsrekt/kline_agent/internal/overlay"
)

// S3Provider stores one JSON object per symbol in an S3 bucket.
type S3Provider struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Provider builds a provider using the ambient AWS credential chain.
func NewS3Provider(ctx context.Context, bucket, prefix string) (*S3Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloudsync: load aws config: %w", err)
	}
	return &S3Provider{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (p *S3Provider) objectKey(symbol string) string {
	if p.prefix == "" {
		return symbol + ".json"
	}
	return p.prefix + "/" + symbol + ".json"
}

func (p *S3Provider) Upload(ctx context.Context, symbol string, records []overlay.Serialized) error {
	if records == nil {
		records = []overlay.Serialized{}
	}
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("cloudsync: encode %s: %w", symbol, err)
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(p.objectKey(symbol)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("cloudsync: put s3://%s/%s: %w", p.bucket, p.objectKey(symbol), err)
	}
	return nil
}

func (p *S3Provider) Download(ctx context.Context, symbol string) ([]overlay.Serialized, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.objectKey(symbol)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return []overlay.Serialized{}, nil
		}
		return nil, fmt.Errorf("cloudsync: get s3://%s/%s: %w", p.bucket, p.objectKey(symbol), err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("cloudsync: read s3 body for %s: %w", symbol, err)
	}
	var records []overlay.Serialized
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("cloudsync: decode %s: %w", symbol, err)
	}
	if records == nil {
		records = []overlay.Serialized{}
	}
	return records, nil
}
