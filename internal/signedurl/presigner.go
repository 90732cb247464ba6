package signedurl

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3pkg "github.com/aws/aws-sdk-go-v2/service/s3"
)

const DefaultPresignExpires = 15 * time.Minute

// Presigner signs s3://bucket/key URIs locally, without asking the backend.
type Presigner struct {
	presignClient *s3pkg.PresignClient
	expires       time.Duration
}

type PresignerConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	AccessKeySecret string
	Expires         time.Duration
}

func NewPresigner(ctx context.Context, presignerConfig *PresignerConfig) (*Presigner, error) {
	var awsConfig aws.Config

	if presignerConfig.AccessKeyID != "" {
		awsConfig = aws.Config{
			Region: presignerConfig.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				presignerConfig.AccessKeyID,
				presignerConfig.AccessKeySecret,
				"",
			),
		}
	} else {
		var err error

		awsConfig, err = config.LoadDefaultConfig(ctx, config.WithRegion(presignerConfig.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
	}

	client := s3pkg.NewFromConfig(awsConfig, func(options *s3pkg.Options) {
		if presignerConfig.Endpoint != "" {
			options.EndpointResolverV2 = &s3EndpointResolver{
				endpoint:        presignerConfig.Endpoint,
				defaultResolver: s3pkg.NewDefaultEndpointResolverV2(),
			}
		}
	})

	expires := presignerConfig.Expires
	if expires <= 0 {
		expires = DefaultPresignExpires
	}

	return &Presigner{
		presignClient: s3pkg.NewPresignClient(client),
		expires:       expires,
	}, nil
}

func (presigner *Presigner) SignedURL(ctx context.Context, resource Resource) (string, error) {
	withoutScheme, ok := strings.CutPrefix(resource.ObjectURI, "s3://")
	if !ok {
		return "", fmt.Errorf("%w: %w: not an s3:// URI", ErrSignedURLRequestFailed, ErrUnsupportedResource)
	}

	bucket, key, ok := strings.Cut(withoutScheme, "/")
	if !ok || bucket == "" || key == "" {
		return "", fmt.Errorf("%w: malformed S3 URI %q", ErrSignedURLRequestFailed, resource.ObjectURI)
	}

	presignedRequest, err := presigner.presignClient.PresignGetObject(ctx, &s3pkg.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3pkg.WithPresignExpires(presigner.expires))
	if err != nil {
		return "", fmt.Errorf("%w: failed to presign %s: %w", ErrSignedURLRequestFailed,
			resource.ObjectURI, err)
	}

	return presignedRequest.URL, nil
}
