// Package metadata builds token metadata JSON: media is uploaded through an
// Uploader, the document is validated against the token metadata schema and
// then uploaded itself, yielding the token URI.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	intents "github.com/mintkit/intents/go"
)

// File is content to upload.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Uploader stores files and returns their URI (for example ipfs://<cid>).
type Uploader interface {
	Upload(ctx context.Context, file File) (string, error)
}

// Media is either already hosted (MediaURI) or to be uploaded (MediaFile).
type Media interface {
	resolve(ctx context.Context, uploader Uploader) (uri, mime string, err error)
}

// MediaURI is media that already has a URI.
type MediaURI struct {
	URI  string
	Mime string
}

func (m MediaURI) resolve(context.Context, Uploader) (string, string, error) {
	if m.URI == "" {
		return "", "", intents.NewIntentError(intents.ErrCodeInvalidInput, "media uri is empty", nil)
	}
	return m.URI, m.Mime, nil
}

// MediaFile is media to upload.
type MediaFile File

func (m MediaFile) resolve(ctx context.Context, uploader Uploader) (string, string, error) {
	if uploader == nil {
		return "", "", intents.NewIntentError(intents.ErrCodeInvalidInput, "an uploader is required for media files", nil)
	}
	if m.Content == nil {
		return "", "", intents.NewIntentError(intents.ErrCodeInvalidInput, fmt.Sprintf("media file %q has no content", m.Name), nil)
	}
	uri, err := uploader.Upload(ctx, File(m))
	if err != nil {
		return "", "", fmt.Errorf("upload %s: %w", m.Name, err)
	}
	return uri, m.ContentType, nil
}

// Attribute is a token trait.
type Attribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

// Content describes the token's primary media.
type Content struct {
	Mime string `json:"mime"`
	URI  string `json:"uri"`
}

// TokenMetadata is the document a token URI points at.
type TokenMetadata struct {
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	Image        string      `json:"image,omitempty"`
	AnimationURL string      `json:"animation_url,omitempty"`
	Content      *Content    `json:"content,omitempty"`
	Attributes   []Attribute `json:"attributes,omitempty"`
}

// Builder assembles token metadata.
type Builder struct {
	name        string
	description string
	media       Media
	thumbnail   Media
	attributes  []Attribute
}

// NewBuilder starts an empty metadata document.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithName(name string) *Builder {
	b.name = name
	return b
}

func (b *Builder) WithDescription(description string) *Builder {
	b.description = description
	return b
}

// WithMedia sets the primary media. Non-image media is exposed as
// animation_url and needs a thumbnail.
func (b *Builder) WithMedia(media Media) *Builder {
	b.media = media
	return b
}

func (b *Builder) WithThumbnail(thumbnail Media) *Builder {
	b.thumbnail = thumbnail
	return b
}

func (b *Builder) WithAttribute(traitType string, value interface{}) *Builder {
	b.attributes = append(b.attributes, Attribute{TraitType: traitType, Value: value})
	return b
}

// Build uploads any media files and returns the validated document.
func (b *Builder) Build(ctx context.Context, uploader Uploader) (*TokenMetadata, error) {
	if b.media == nil {
		return nil, intents.NewIntentError(intents.ErrCodeInvalidInput, "token media is required", nil)
	}

	md := &TokenMetadata{
		Name:        b.name,
		Description: b.description,
		Attributes:  b.attributes,
	}

	uri, mime, err := b.media.resolve(ctx, uploader)
	if err != nil {
		return nil, err
	}
	md.Content = &Content{Mime: mime, URI: uri}

	if isImage(mime) {
		md.Image = uri
	} else {
		md.AnimationURL = uri
	}
	if b.thumbnail != nil {
		thumb, _, err := b.thumbnail.resolve(ctx, uploader)
		if err != nil {
			return nil, err
		}
		md.Image = thumb
	}

	if err := Validate(md); err != nil {
		return nil, err
	}
	return md, nil
}

// Upload builds the document and uploads it, returning the token URI.
func (b *Builder) Upload(ctx context.Context, uploader Uploader) (string, *TokenMetadata, error) {
	md, err := b.Build(ctx, uploader)
	if err != nil {
		return "", nil, err
	}
	doc, err := json.Marshal(md)
	if err != nil {
		return "", nil, fmt.Errorf("encode metadata: %w", err)
	}
	uri, err := uploader.Upload(ctx, File{
		Name:        "metadata.json",
		ContentType: "application/json",
		Content:     strings.NewReader(string(doc)),
	})
	if err != nil {
		return "", nil, fmt.Errorf("upload metadata: %w", err)
	}
	return uri, md, nil
}

func isImage(mime string) bool {
	return mime == "" || strings.HasPrefix(mime, "image/")
}

// tokenMetadataSchema requires a name and an image; animation media always
// comes with a thumbnail image.
const tokenMetadataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name", "image"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "image": {"type": "string", "pattern": "^(ipfs|ar|https?|data):"},
    "animation_url": {"type": "string", "pattern": "^(ipfs|ar|https?|data):"},
    "content": {
      "type": "object",
      "required": ["uri"],
      "properties": {
        "mime": {"type": "string"},
        "uri": {"type": "string", "minLength": 1}
      }
    },
    "attributes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["trait_type", "value"],
        "properties": {
          "trait_type": {"type": "string", "minLength": 1},
          "value": {"type": ["string", "number", "boolean"]}
        }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(tokenMetadataSchema)

// Validate checks md against the token metadata schema.
func Validate(md *TokenMetadata) error {
	doc, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if result.Valid() {
		return nil
	}

	var problems []string
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Context().String(), desc.Description()))
	}
	return intents.NewIntentError(intents.ErrCodeInvalidInput, "invalid token metadata",
		map[string]interface{}{"errors": problems})
}
