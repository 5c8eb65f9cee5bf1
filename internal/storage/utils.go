package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaterialsPrefix is the common prefix of every uploaded material object
const MaterialsPrefix = "materials/"

// GenerateObjectPath generates a unique object path for an uploaded material.
// The result looks like materials/<category>/<unix-ms>_<random>.<ext>
func GenerateObjectPath(category, extension string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	extension = strings.TrimPrefix(extension, ".")
	if extension == "" {
		extension = "file"
	}
	return fmt.Sprintf("%s%s/%d_%s.%s", MaterialsPrefix, category, now.UnixMilli(), suffix, extension)
}

// ExtensionFromFilename returns the lowercase extension of a file name without the dot,
// falling back to the subtype of the content type ("application/pdf" -> "pdf")
func ExtensionFromFilename(filename, contentType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	if _, subtype, ok := strings.Cut(contentType, "/"); ok && subtype != "" && subtype != "*" {
		return strings.ToLower(subtype)
	}
	return ""
}

// ContentTypeForExtension maps known material extensions to content types
func ContentTypeForExtension(extension string) string {
	contentTypeMap := map[string]string{
		"pdf":  "application/pdf",
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"png":  "image/png",
		"gif":  "image/gif",
		"webp": "image/webp",
	}

	if contentType, ok := contentTypeMap[strings.ToLower(strings.TrimPrefix(extension, "."))]; ok {
		return contentType
	}
	return "application/octet-stream"
}

func buildPublicURL(baseURL, bucket, path string) string {
	return fmt.Sprintf("%s/%s/%s", baseURL, bucket, strings.TrimPrefix(path, "/"))
}

func pathFromPublicURL(baseURL, bucket, publicURL string) (string, bool) {
	prefix := fmt.Sprintf("%s/%s/", baseURL, bucket)
	if !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	path := strings.TrimPrefix(publicURL, prefix)
	if path == "" {
		return "", false
	}
	return path, true
}
