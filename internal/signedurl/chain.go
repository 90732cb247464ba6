package signedurl

import (
	"context"
	"errors"
	"fmt"
)

// Chain asks each signer in turn, skipping those that don't support
// the resource. The first answer wins.
type Chain []Signer

func (chain Chain) SignedURL(ctx context.Context, resource Resource) (string, error) {
	var errs []error

	for _, signer := range chain {
		signedURL, err := signer.SignedURL(ctx, resource)
		if err == nil {
			return signedURL, nil
		}

		if !errors.Is(err, ErrUnsupportedResource) {
			errs = append(errs, err)
		}
	}

	if len(errs) == 0 {
		return "", fmt.Errorf("%w: %w", ErrSignedURLRequestFailed, ErrUnsupportedResource)
	}

	return "", errors.Join(errs...)
}
