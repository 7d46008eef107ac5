package models

import (
	"encoding/json"
	"time"
)

// Resource 表的列名。
const (
	ColumnObjectID           = "objectId"
	ColumnCreatedAt          = "createdAt"
	ColumnUpdatedAt          = "updatedAt"
	ColumnFilename           = "filename"
	ColumnThumbnailURLString = "thumbnailURLString"
	ColumnFileURLString      = "fileURLString"
	ColumnExifData           = "exifData"
)

// UploadRecord 是发送给 Parse 的请求体，只包含这三个字段。
type UploadRecord struct {
	Filename           string `json:"filename"`
	ThumbnailURLString string `json:"thumbnailURLString"`
	FileURLString      string `json:"fileURLString"`
}

// Resource is a row of the remote Resource class as returned by a find query.
type Resource struct {
	ObjectID           string          `json:"objectId"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
	Filename           string          `json:"filename"`
	ThumbnailURLString string          `json:"thumbnailURLString"`
	FileURLString      string          `json:"fileURLString"`
	ExifData           json.RawMessage `json:"exifData,omitempty"`
}

// AnnouncedResource 记录某个文件已经成功发布到远端，用于重复运行时跳过。
type AnnouncedResource struct {
	BaseModel
	Filename           string `gorm:"type:varchar(255);uniqueIndex;not null" json:"filename"`
	ObjectID           string `gorm:"type:varchar(64)" json:"objectId,omitempty"`
	ThumbnailURLString string `gorm:"type:text" json:"thumbnailURLString"`
	FileURLString      string `gorm:"type:text" json:"fileURLString"`
	RunID              string `gorm:"type:varchar(36);index" json:"runId"`
	StatusCode         int    `json:"statusCode"`
}

// TableName 指定 AnnouncedResource 模型的表名。
func (AnnouncedResource) TableName() string {
	return "announced_resources"
}

// ResourceEvent is published after a resource was accepted by the server.
type ResourceEvent struct {
	RunID              string    `json:"runId"`
	Filename           string    `json:"filename"`
	ObjectID           string    `json:"objectId,omitempty"`
	ThumbnailURLString string    `json:"thumbnailURLString"`
	FileURLString      string    `json:"fileURLString"`
	AnnouncedAt        time.Time `json:"announcedAt"`
}

// NewResourceEvent builds the event for an accepted record.
func NewResourceEvent(runID string, rec UploadRecord, objectID string, at time.Time) ResourceEvent {
	return ResourceEvent{
		RunID:              runID,
		Filename:           rec.Filename,
		ObjectID:           objectID,
		ThumbnailURLString: rec.ThumbnailURLString,
		FileURLString:      rec.FileURLString,
		AnnouncedAt:        at,
	}
}
