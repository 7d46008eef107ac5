// Package links derives the public thumbnail and asset URLs of a file.
package links

import (
	"net/url"

	"resource-linker/internal/config"
	"resource-linker/internal/models"
)

// Builder 通过前缀拼接文件名生成公开 URL。
// 默认不对文件名做转义，含空格等字符的文件名会得到未编码的 URL。
type Builder struct {
	thumbnailBase string
	assetBase     string
	encode        bool
}

// NewBuilder creates a Builder from the links configuration.
func NewBuilder(cfg config.LinksConfig) *Builder {
	return &Builder{
		thumbnailBase: cfg.ThumbnailBaseURL,
		assetBase:     cfg.AssetBaseURL,
		encode:        cfg.EncodeFilenames,
	}
}

// Build returns the record announced for filename.
// The filename field always carries the name unchanged; only the URLs are escaped when enabled.
func (b *Builder) Build(filename string) models.UploadRecord {
	leaf := filename
	if b.encode {
		leaf = url.PathEscape(filename)
	}
	return models.UploadRecord{
		Filename:           filename,
		ThumbnailURLString: b.thumbnailBase + leaf,
		FileURLString:      b.assetBase + leaf,
	}
}
