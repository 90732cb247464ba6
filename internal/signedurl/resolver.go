package signedurl

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3pkg "github.com/aws/aws-sdk-go-v2/service/s3"
	transport "github.com/aws/smithy-go/endpoints"
)

// s3EndpointResolver points the SDK at an S3-compatible endpoint
// using path-style addressing.
type s3EndpointResolver struct {
	endpoint        string
	defaultResolver s3pkg.EndpointResolverV2
}

func (e *s3EndpointResolver) ResolveEndpoint(
	ctx context.Context,
	params s3pkg.EndpointParameters,
) (transport.Endpoint, error) {
	params.Endpoint = aws.String(e.endpoint)
	params.ForcePathStyle = aws.Bool(true)

	return e.defaultResolver.ResolveEndpoint(ctx, params)
}
