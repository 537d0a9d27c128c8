package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	lru "github.com/hashicorp/golang-lru"
)

const assetCacheSize = 64

// SpacesService serves the static art used in announcements and replies
// (lootbox drop image, badge icons) from a DigitalOcean Spaces bucket.
type SpacesService struct {
	client    *s3.Client
	bucket    string
	region    string
	assetRoot string
	cache     *lru.Cache
}

func NewSpacesService(spacesKey, spacesSecret, region, bucket, assetRoot string) (*SpacesService, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.digitaloceanspaces.com", region),
		}, nil
	})

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithEndpointResolverWithOptions(resolver),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(spacesKey, spacesSecret, "")),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load Spaces config: %w", err)
	}

	cache, err := lru.New(assetCacheSize)
	if err != nil {
		return nil, err
	}

	return &SpacesService{
		client:    s3.NewFromConfig(cfg),
		bucket:    bucket,
		region:    region,
		assetRoot: strings.Trim(assetRoot, "/"),
		cache:     cache,
	}, nil
}

// AssetURL returns the public CDN URL of an asset key.
func (s *SpacesService) AssetURL(key string) string {
	return fmt.Sprintf("https://%s.%s.cdn.digitaloceanspaces.com/%s/%s",
		s.bucket, s.region, s.assetRoot, strings.TrimPrefix(key, "/"))
}

// FetchAsset downloads an asset, serving repeat requests from an LRU cache.
func (s *SpacesService) FetchAsset(ctx context.Context, key string) ([]byte, error) {
	fullKey := fmt.Sprintf("%s/%s", s.assetRoot, strings.TrimPrefix(key, "/"))

	if cached, ok := s.cache.Get(fullKey); ok {
		return cached.([]byte), nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &fullKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch asset %s: %w", fullKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %s: %w", fullKey, err)
	}

	s.cache.Add(fullKey, data)
	return data, nil
}
