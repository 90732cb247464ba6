package signedurl

import (
	"context"

	"github.com/samber/lo"
)

// Media is a post's media item as returned by the backend.
type Media struct {
	URL              string `json:"url,omitempty"`
	AuthenticatedURL string `json:"authenticated_url,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`
	GCSURI           string `json:"gcs_uri,omitempty"`
	Image            string `json:"image,omitempty"`
	IsCover          bool   `json:"is_cover,omitempty"`

	// View is the URL to display the item from, filled by ResolveMedia.
	View string `json:"_view,omitempty"`
}

func (media Media) ObjectURI() string {
	objectURI, _ := lo.Coalesce(media.GCSURI, media.Image)

	return objectURI
}

// ResolveMedia fills the View of every item: direct URLs are used as is,
// object URIs get signed, and when signing fails the public bucket URL
// is used instead. Items without any location are left untouched.
func ResolveMedia(ctx context.Context, signer Signer, items []Media) []Media {
	result := make([]Media, 0, len(items))

	for _, item := range items {
		if direct, ok := lo.Coalesce(item.AuthenticatedURL, item.URL, item.ImageURL); ok {
			item.View = direct
			result = append(result, item)

			continue
		}

		objectURI := item.ObjectURI()
		if objectURI == "" {
			result = append(result, item)

			continue
		}

		item.View = ResolveGCS(objectURI)

		if signer != nil {
			if signedURL, err := signer.SignedURL(ctx, Resource{ObjectURI: objectURI}); err == nil {
				item.View = signedURL
			}
		}

		result = append(result, item)
	}

	return result
}

// Cover picks the item flagged as cover, or the first one.
func Cover(items []Media) (Media, bool) {
	if len(items) == 0 {
		return Media{}, false
	}

	if cover, ok := lo.Find(items, func(item Media) bool {
		return item.IsCover
	}); ok {
		return cover, true
	}

	return items[0], true
}

// Resource turns the media item into a refreshable resource for the given post.
func (media Media) Resource(postID string) Resource {
	displayURL, _ := lo.Coalesce(media.View, media.URL, media.AuthenticatedURL, media.ImageURL)

	return Resource{
		PostID:    postID,
		ObjectURI: media.ObjectURI(),
		URL:       displayURL,
	}
}
