package data

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BlockType names a variant of the stream body block union.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockImage     BlockType = "image"
	BlockEmbed     BlockType = "embed"
)

// Block is one stored entry of a stream body. Value holds the variant's
// stored form: a string for heading, paragraph and embed, an image id or
// null for image.
type Block struct {
	Type  BlockType       `json:"type"`
	Value json.RawMessage `json:"value"`
	ID    string          `json:"id,omitempty"`
}

func newBlock(t BlockType, v interface{}) Block {
	raw, _ := json.Marshal(v)
	return Block{Type: t, Value: raw, ID: uuid.NewString()}
}

// HeadingBlock returns a heading block holding text.
func HeadingBlock(text string) Block { return newBlock(BlockHeading, text) }

// ParagraphBlock returns a paragraph block holding rich-text source.
func ParagraphBlock(source string) Block { return newBlock(BlockParagraph, source) }

// ImageBlock returns an image block referencing the image id.
func ImageBlock(imageID int64) Block { return newBlock(BlockImage, imageID) }

// EmbedBlock returns an embed block for an external URL.
func EmbedBlock(url string) Block { return newBlock(BlockEmbed, url) }

// StreamBody is the ordered block sequence of a page, stored as JSON.
type StreamBody []Block

// Scan implements sql.Scanner.
func (b *StreamBody) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*b = StreamBody{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StreamBody", src)
	}
	var blocks []Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return fmt.Errorf("failed to decode stream body: %w", err)
	}
	if blocks == nil {
		blocks = []Block{}
	}
	*b = blocks
	return nil
}

// Value implements driver.Valuer.
func (b StreamBody) Value() (driver.Value, error) {
	if b == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]Block(b))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

const dateLayout = "2006-01-02"

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

// NewDate returns the date for year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// MarshalJSON renders the date as "YYYY-MM-DD", or null when unset.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD", "" or null.
func (d *Date) UnmarshalJSON(raw []byte) error {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner. Drivers hand dates back as time.Time or as
// text depending on column type and DSN options.
func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	}
	return fmt.Errorf("cannot scan %T into Date", src)
}

func (d *Date) scanString(s string) error {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}
