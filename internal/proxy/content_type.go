package proxy

import (
	"net/url"
	"path"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/utils/v2"
)

// ContentTypes 根据扩展名推断 Content-Type；opaque 中的扩展名强制为 octet-stream。
type ContentTypes struct {
	opaque map[string]struct{}
}

// NewContentTypes 构建推断器，扩展名大小写不敏感，可省略前导点。
func NewContentTypes(opaqueExtensions []string) ContentTypes {
	opaque := make(map[string]struct{}, len(opaqueExtensions))
	for _, ext := range opaqueExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		opaque[ext] = struct{}{}
	}
	return ContentTypes{opaque: opaque}
}

// Detect 返回 target 的 Content-Type，忽略 query 与 fragment。
func (t ContentTypes) Detect(target string) string {
	p := target
	if parsed, err := url.Parse(target); err == nil {
		p = parsed.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return fiber.MIMEOctetStream
	}
	if _, ok := t.opaque[ext]; ok {
		return fiber.MIMEOctetStream
	}
	if ct := utils.GetMIME(ext); ct != "" {
		return ct
	}
	return fiber.MIMEOctetStream
}
