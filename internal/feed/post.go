package feed

import (
	"bytes"
	"encoding/json"
	"maps"

	"github.com/cirruslabs/imagecache/internal/signedurl"
)

// Post is a feed item. Only the fields the cache works with are decoded,
// everything else the backend sends is kept verbatim in Fields.
type Post struct {
	ID     string
	Media  []signedurl.Media
	Fields map[string]json.RawMessage
}

func (post *Post) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage

	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	post.Fields = fields
	post.ID = decodeID(fields["id"])
	post.Media = decodeMedia(fields["media"])

	return nil
}

func (post Post) MarshalJSON() ([]byte, error) {
	fields := maps.Clone(post.Fields)
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}

	media, err := json.Marshal(post.Media)
	if err != nil {
		return nil, err
	}

	fields["_mediaArr"] = media

	return json.Marshal(fields)
}

// Cover returns the post's cover media item.
func (post Post) Cover() (signedurl.Media, bool) {
	return signedurl.Cover(post.Media)
}

// decodeID accepts both numeric and string IDs.
func decodeID(raw json.RawMessage) string {
	var id string

	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}

	var number json.Number

	if err := json.Unmarshal(raw, &number); err == nil {
		return number.String()
	}

	return ""
}

// decodeMedia accepts the media list either as is or JSON-encoded
// into a string. Anything malformed means no media.
func decodeMedia(raw json.RawMessage) []signedurl.Media {
	raw = bytes.TrimSpace(raw)

	if len(raw) != 0 && raw[0] == '"' {
		var encoded string

		if err := json.Unmarshal(raw, &encoded); err != nil {
			return []signedurl.Media{}
		}

		if encoded == "" {
			encoded = "[]"
		}

		raw = json.RawMessage(encoded)
	}

	var media []signedurl.Media

	if err := json.Unmarshal(raw, &media); err != nil || media == nil {
		return []signedurl.Media{}
	}

	return media
}
