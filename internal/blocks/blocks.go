// Package blocks serializes stream body blocks into their API form.
package blocks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"headless-cms/internal/assets"
	"headless-cms/internal/data"
	"headless-cms/internal/embed"
	"headless-cms/internal/logger"
)

// ErrBlockFailed marks a block that could not be serialized in strict mode.
var ErrBlockFailed = errors.New("block serialization failed")

// Image rendition widths selected by orientation.
const (
	LandscapeWidth = 1600
	PortraitWidth  = 1200
)

// ImageStore loads original images.
type ImageStore interface {
	GetImageByID(ctx context.Context, id int64) (*data.Image, error)
}

// Renditions computes image renditions.
type Renditions interface {
	Rendition(img *data.Image, spec string) (*assets.Rendition, error)
}

// EmbedResolver resolves external URLs into embed HTML.
type EmbedResolver interface {
	Resolve(ctx context.Context, rawURL string, maxWidth int) (*embed.Embed, error)
}

// TextRenderer renders paragraph rich text.
type TextRenderer interface {
	Render(ctx context.Context, source string) string
}

// Serialized is one block of a body in API form.
type Serialized struct {
	Type  data.BlockType `json:"type"`
	Value interface{}    `json:"value"`
	ID    string         `json:"id,omitempty"`
}

// ImageValue is the API form of an image block.
type ImageValue struct {
	ID       int64             `json:"id"`
	Title    string            `json:"title"`
	Original *assets.Rendition `json:"original"`
	Medium   *assets.Rendition `json:"medium"`
}

// EmbedValue is the API form of an embed block.
type EmbedValue struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// Config holds the serializer settings.
type Config struct {
	// Strict makes the first failing block fail the whole body.
	Strict        bool
	EmbedMaxWidth int
}

// Serializer turns stored blocks into API values.
type Serializer struct {
	images     ImageStore
	renditions Renditions
	embeds     EmbedResolver
	text       TextRenderer
	log        logger.Logger
	cfg        Config
}

// NewSerializer creates a Serializer with its collaborators.
func NewSerializer(images ImageStore, renditions Renditions, embeds EmbedResolver, text TextRenderer, log logger.Logger, cfg Config) *Serializer {
	return &Serializer{
		images:     images,
		renditions: renditions,
		embeds:     embeds,
		text:       text,
		log:        log,
		cfg:        cfg,
	}
}

// SerializeBody serializes every block of body in order. The result always
// has one entry per stored block; failed blocks carry a null value unless
// the serializer is strict.
func (s *Serializer) SerializeBody(ctx context.Context, body data.StreamBody) ([]Serialized, error) {
	out := make([]Serialized, 0, len(body))
	for i, b := range body {
		value, err := s.serializeBlock(ctx, b)
		if err != nil {
			if s.cfg.Strict {
				return nil, fmt.Errorf("%w: %s block %d: %v", ErrBlockFailed, b.Type, i, err)
			}
			s.log.With(map[string]interface{}{
				"block_type":  string(b.Type),
				"block_id":    b.ID,
				"block_index": i,
			}).Error(err, "Failed to serialize block")
			value = nil
		}
		out = append(out, Serialized{Type: b.Type, Value: value, ID: b.ID})
	}
	return out, nil
}

func (s *Serializer) serializeBlock(ctx context.Context, b data.Block) (interface{}, error) {
	switch b.Type {
	case data.BlockHeading:
		return decodeString(b.Value)
	case data.BlockParagraph:
		source, err := decodeString(b.Value)
		if err != nil {
			return nil, err
		}
		return s.text.Render(ctx, source), nil
	case data.BlockImage:
		return s.serializeImage(ctx, b.Value)
	case data.BlockEmbed:
		return s.serializeEmbed(ctx, b.Value)
	}
	s.log.Warn(fmt.Sprintf("Unknown block type %q serialized as null", b.Type))
	return nil, nil
}

func (s *Serializer) serializeImage(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if isNull(raw) {
		return nil, nil
	}
	var id int64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("image block holds no image id: %w", err)
	}
	img, err := s.images.GetImageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	original, err := s.renditions.Rendition(img, "original")
	if err != nil {
		return nil, err
	}
	medium, err := s.renditions.Rendition(img, fmt.Sprintf("width-%d", MediumWidth(original)))
	if err != nil {
		return nil, err
	}
	return &ImageValue{ID: img.ID, Title: img.Title, Original: original, Medium: medium}, nil
}

// MediumWidth picks the medium rendition width from the original's size.
func MediumWidth(original *assets.Rendition) int {
	if original.Width > original.Height {
		return LandscapeWidth
	}
	return PortraitWidth
}

func (s *Serializer) serializeEmbed(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	url, err := decodeString(raw)
	if err != nil {
		return nil, err
	}
	if url == "" {
		return nil, nil
	}
	e, err := s.embeds.Resolve(ctx, url, s.cfg.EmbedMaxWidth)
	if err != nil {
		return nil, err
	}
	return &EmbedValue{URL: url, HTML: e.HTML}, nil
}

func decodeString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("block value is not a string: %w", err)
	}
	return s, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
