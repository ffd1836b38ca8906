package main

import (
	"bytes"
	"errors"
	"fmt"
	"headless-cms/internal/data"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

const frontMatterDelim = "---"

// post is a markdown document split into its front matter and body.
type post struct {
	Title       string `yaml:"title"`
	Slug        string `yaml:"slug"`
	Date        string `yaml:"date"`
	ShowInMenus bool   `yaml:"show_in_menus"`
	Live        bool   `yaml:"live"`
	// Parent is the slug of the page the post is created under.
	Parent string `yaml:"parent"`

	body []byte
}

// parsePost reads the YAML front matter block at the top of content.
func parsePost(content []byte) (*post, error) {
	str := strings.TrimPrefix(string(content), "\ufeff")
	if !strings.HasPrefix(str, frontMatterDelim) {
		return nil, errors.New("missing front matter")
	}
	parts := strings.SplitN(str, "\n"+frontMatterDelim, 2)
	if len(parts) != 2 {
		return nil, errors.New("unterminated front matter")
	}
	var p post
	if err := yaml.Unmarshal([]byte(strings.TrimPrefix(parts[0], frontMatterDelim)), &p); err != nil {
		return nil, fmt.Errorf("invalid front matter: %w", err)
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, errors.New("front matter has no title")
	}
	p.body = []byte(strings.TrimLeft(parts[1], "\r\n"))
	return &p, nil
}

// converter turns markdown into stream body blocks.
type converter struct {
	md goldmark.Markdown
}

func newConverter() *converter {
	return &converter{md: goldmark.New()}
}

// Convert maps each top-level markdown block onto a stream block. Headings
// become heading blocks, a paragraph holding a lone URL becomes an embed
// and every other block is rendered to HTML as a paragraph.
func (c *converter) Convert(source []byte) (data.StreamBody, error) {
	doc := c.md.Parser().Parse(text.NewReader(source))
	body := data.StreamBody{}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			body = append(body, data.HeadingBlock(strings.TrimSpace(nodeText(node, source))))
			continue
		case *ast.ThematicBreak:
			continue
		case *ast.Paragraph:
			if u, ok := embedURL(node, source); ok {
				body = append(body, data.EmbedBlock(u))
				continue
			}
		}
		html, err := c.render(n, source)
		if err != nil {
			return nil, err
		}
		body = append(body, data.ParagraphBlock(html))
	}
	return body, nil
}

func (c *converter) render(n ast.Node, source []byte) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Renderer().Render(&buf, source, n); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", n.Kind(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// embedURL reports the URL of a paragraph whose only content is a link.
func embedURL(p *ast.Paragraph, source []byte) (string, bool) {
	var candidate string
	if link, ok := p.FirstChild().(*ast.AutoLink); ok && link.NextSibling() == nil {
		candidate = string(link.URL(source))
	} else {
		for c := p.FirstChild(); c != nil; c = c.NextSibling() {
			if _, ok := c.(*ast.Text); !ok {
				return "", false
			}
		}
		candidate = strings.TrimSpace(nodeText(p, source))
	}
	if strings.ContainsAny(candidate, " \t\n") {
		return "", false
	}
	u, err := url.Parse(candidate)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return candidate, true
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		default:
			sb.WriteString(nodeText(c, source))
		}
	}
	return sb.String()
}
