package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AssetType string

const (
	AssetImage        AssetType = "image"
	AssetVideo        AssetType = "video"
	AssetAudio        AssetType = "audio"
	AssetDocument     AssetType = "document"
	AssetSpreadsheet  AssetType = "spreadsheet"
	AssetPresentation AssetType = "presentation"
	AssetArchive      AssetType = "archive"
	AssetOther        AssetType = "other"
)

func (t AssetType) Valid() bool {
	switch t {
	case AssetImage, AssetVideo, AssetAudio, AssetDocument, AssetSpreadsheet, AssetPresentation, AssetArchive, AssetOther:
		return true
	}
	return false
}

// AssetTypeFromMIME maps a MIME type onto an AssetType.
func AssetTypeFromMIME(mime string) AssetType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case strings.HasPrefix(mime, "image/"):
		return AssetImage
	case strings.HasPrefix(mime, "video/"):
		return AssetVideo
	case strings.HasPrefix(mime, "audio/"):
		return AssetAudio
	case strings.Contains(mime, "spreadsheet"), strings.Contains(mime, "excel"), mime == "text/csv":
		return AssetSpreadsheet
	case strings.Contains(mime, "presentation"), strings.Contains(mime, "powerpoint"):
		return AssetPresentation
	case strings.Contains(mime, "zip"), strings.Contains(mime, "rar"), strings.Contains(mime, "7z"),
		strings.Contains(mime, "tar"), strings.Contains(mime, "gzip"):
		return AssetArchive
	case mime == "application/pdf", strings.HasPrefix(mime, "text/"),
		strings.Contains(mime, "msword"), strings.Contains(mime, "wordprocessing"), mime == "application/rtf":
		return AssetDocument
	}
	return AssetOther
}

// Asset tags applied to files that arrive through the client submission path.
const (
	TagClientUpload          = "client-upload"
	TagRequirementAttachment = "requirement-attachment"
)

type AssetVersion struct {
	FileURL    string    `bson:"fileUrl" json:"fileUrl"`
	Version    int       `bson:"version" json:"version"`
	UploadedAt time.Time `bson:"uploadedAt" json:"uploadedAt"`
}

type Asset struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name             string              `bson:"name" json:"name"`
	Description      string              `bson:"description,omitempty" json:"description,omitempty"`
	Project          primitive.ObjectID  `bson:"project" json:"project"`
	Requirement      *primitive.ObjectID `bson:"requirement,omitempty" json:"requirement,omitempty"`
	Type             AssetType           `bson:"type" json:"type"`
	FileURL          string              `bson:"fileUrl" json:"fileUrl"`
	FileName         string              `bson:"fileName" json:"fileName"`
	MimeType         string              `bson:"mimeType" json:"mimeType"`
	FileSize         int64               `bson:"fileSize" json:"fileSize"`
	Version          int                 `bson:"version" json:"version"`
	UploadedAt       time.Time           `bson:"uploadedAt" json:"uploadedAt"`
	PreviousVersions []AssetVersion      `bson:"previousVersions" json:"previousVersions"`
	Tags             []string            `bson:"tags,omitempty" json:"tags,omitempty"`
	UploadedBy       primitive.ObjectID  `bson:"uploadedBy" json:"uploadedBy"`
	Timestamps       `bson:",inline"`
}

// FileURLs returns the active file URL followed by every previous version.
func (a *Asset) FileURLs() []string {
	out := make([]string, 0, 1+len(a.PreviousVersions))
	if a.FileURL != "" {
		out = append(out, a.FileURL)
	}
	for _, v := range a.PreviousVersions {
		out = append(out, v.FileURL)
	}
	return out
}
