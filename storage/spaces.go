// Package storage archives finalized transcripts to S3-compatible object
// storage such as DigitalOcean Spaces.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/config"
	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
)

const keyPrefix = "transcripts/"

// Client stores transcript entries as JSON objects in a single bucket.
type Client struct {
	s3     *s3.Client
	bucket string
	log    *logrus.Entry
}

// NewClient builds an object storage client from archive credentials.
// A custom endpoint routes requests to Spaces or any other S3-compatible
// provider; when it is empty the client talks to AWS S3 directly.
func NewClient(cfg config.ArchiveConfig, log *logrus.Logger) (*Client, error) {
	const op = "Storage.NewClient"

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.Key, cfg.Secret, "")),
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: cfg.Endpoint}, nil
			})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, errors.Internal(op, err, "failed to configure object storage client")
	}

	return &Client{
		s3:     s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		log:    log.WithField("component", "storage"),
	}, nil
}

// Archive uploads the entry as JSON under transcripts/<videoId>.json,
// overwriting any previous object for the same video.
func (c *Client) Archive(ctx context.Context, entry *models.CacheEntry) error {
	const op = "Storage.Archive"

	body, err := json.Marshal(entry)
	if err != nil {
		return errors.Internal(op, err, "failed to encode transcript")
	}

	key := objectKey(entry.VideoID)
	_, err = c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Internal(op, err, "failed to store transcript object")
	}

	c.log.WithFields(logrus.Fields{
		"videoId": entry.VideoID,
		"key":     key,
		"bytes":   len(body),
	}).Debug("Transcript archived")
	return nil
}

// Fetch retrieves a previously archived transcript.
func (c *Client) Fetch(ctx context.Context, videoID string) (*models.CacheEntry, error) {
	const op = "Storage.Fetch"

	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey(videoID)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if stderrors.As(err, &missing) {
			return nil, errors.NotFound(op, err, "transcript not archived")
		}
		return nil, errors.Internal(op, err, "failed to fetch transcript object")
	}
	defer out.Body.Close()

	var entry models.CacheEntry
	if err := json.NewDecoder(out.Body).Decode(&entry); err != nil {
		return nil, errors.Internal(op, err, "failed to decode archived transcript")
	}
	return &entry, nil
}

func objectKey(videoID string) string {
	return keyPrefix + videoID + ".json"
}
