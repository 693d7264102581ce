package gphotos

import (
	"crypto/sha256"
	"encoding/hex"
)

// MediaItem is one entry of a Google Photos album listing.
// https://developers.google.com/photos/library/reference/rest/v1/mediaItems
type MediaItem struct {
	// ID is the provider-assigned media item identifier.
	ID string `json:"id"`

	// Description is the free-text description the album owner entered.
	Description string `json:"description"`

	// BaseURL is the content download URL. Google rotates it roughly every
	// hour, so it must never be persisted or used for change detection.
	BaseURL string `json:"baseUrl"`

	// MimeType is the content type, e.g. "image/jpeg".
	MimeType string `json:"mimeType"`

	// Filename is the original upload filename.
	Filename string `json:"filename"`

	// MediaMetadata carries the item's technical metadata.
	MediaMetadata MediaMetadata `json:"mediaMetadata"`
}

// MediaMetadata holds the width/height/creation-time block of a media item.
// Width and height are decimal strings in the API's JSON.
type MediaMetadata struct {
	CreationTime string `json:"creationTime"`
	Width        string `json:"width"`
	Height       string `json:"height"`
}

// Fingerprint returns a deterministic SHA-256 hex digest of the listing
// fields that change when the remote item is edited or replaced: description,
// filename, MIME type, and media metadata. BaseURL is intentionally excluded
// because it rotates without the content changing.
func (m *MediaItem) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(m.Description))
	h.Write([]byte("|"))
	h.Write([]byte(m.Filename))
	h.Write([]byte("|"))
	h.Write([]byte(m.MimeType))
	h.Write([]byte("|"))
	h.Write([]byte(m.MediaMetadata.CreationTime))
	h.Write([]byte("|"))
	h.Write([]byte(m.MediaMetadata.Width))
	h.Write([]byte("x"))
	h.Write([]byte(m.MediaMetadata.Height))
	return hex.EncodeToString(h.Sum(nil))
}

// Album is one entry of the album listing, used by the setup wizard to let
// the user pick the board's source album.
type Album struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	// MediaItemsCount is a decimal string in the API's JSON.
	MediaItemsCount string `json:"mediaItemsCount"`
}
