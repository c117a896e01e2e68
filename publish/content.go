package publish

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/sup-lh/wechat-tool/internal/fsstore"
)

var (
	headingRe     = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	orderedListRe = regexp.MustCompile(`(?s)<ol[^>]*>(.*?)</ol>`)
	bulletListRe  = regexp.MustCompile(`(?s)<ul[^>]*>(.*?)</ul>`)
	listItemRe    = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
)

var headingSizes = map[string]string{
	"1": "24px",
	"2": "22px",
	"3": "20px",
	"4": "18px",
	"5": "16px",
	"6": "15px",
}

// RenderArticleHTML converts markdown to HTML styled for the draft
// editor. The editor strips heading and list tags, so both get rewritten
// into styled paragraphs.
func RenderArticleHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render article: %w", err)
	}
	html := buf.String()
	html = convertHeadings(html)
	html = flattenLists(html)
	return html, nil
}

// ArticleImage is one successfully uploaded body image.
type ArticleImage struct {
	URL         string
	Description string
}

// ImageArticleMarkdown lays out a generated-image article: each image
// under its shot description, in shot order.
func ImageArticleMarkdown(title string, images []ArticleImage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	for _, img := range images {
		if img.Description != "" {
			fmt.Fprintf(&b, "**%s**\n\n", img.Description)
		}
		fmt.Fprintf(&b, "![%s](%s)\n\n", img.Description, img.URL)
	}
	return b.String()
}

func convertHeadings(html string) string {
	return headingRe.ReplaceAllStringFunc(html, func(block string) string {
		parts := headingRe.FindStringSubmatch(block)
		if len(parts) != 3 {
			return block
		}
		size := headingSizes[parts[1]]
		if size == "" {
			size = "18px"
		}
		text := strings.TrimSpace(parts[2])
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`, size, text)
	})
}

func flattenLists(html string) string {
	html = orderedListRe.ReplaceAllStringFunc(html, func(block string) string {
		items := listItemRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for i, item := range items {
			fmt.Fprintf(&b, "<p>%d. %s</p>", i+1, strings.TrimSpace(item[1]))
		}
		return b.String()
	})
	html = bulletListRe.ReplaceAllStringFunc(html, func(block string) string {
		items := listItemRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for _, item := range items {
			fmt.Fprintf(&b, "<p>• %s</p>", strings.TrimSpace(item[1]))
		}
		return b.String()
	})
	return html
}

// GenerateCoverImage writes a solid-color placeholder cover into dir,
// colored deterministically from seed, and returns the file path.
func GenerateCoverImage(dir string, seed string) (string, error) {
	if err := fsstore.EnsureDir(dir, 0); err != nil {
		return "", err
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	sum := h.Sum32()
	fill := color.RGBA{
		R: uint8(80 + sum%150),
		G: uint8(80 + (sum>>8)%150),
		B: uint8(80 + (sum>>16)%150),
		A: 255,
	}

	const width, height = 900, 383
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, fill)
		}
	}

	path := filepath.Join(dir, "cover_"+uuid.NewString()+".png")
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(out, img); err != nil {
		_ = out.Close()
		_ = os.Remove(path)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}
