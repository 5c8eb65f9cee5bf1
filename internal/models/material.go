package models

import "time"

// Category represents an exam or curriculum track
type Category string

const (
	CategoryJEE      Category = "jee"
	CategoryNCERT    Category = "ncert"
	CategoryNEET     Category = "neet"
	CategoryOlympiad Category = "olympiad"
	CategoryCUET     Category = "cuet"
	CategoryNTSE     Category = "ntse"
)

// Categories lists all known categories in display order
var Categories = []Category{
	CategoryJEE,
	CategoryNCERT,
	CategoryNEET,
	CategoryOlympiad,
	CategoryCUET,
	CategoryNTSE,
}

// MaterialKind represents the kind of a learning resource
type MaterialKind string

const (
	MaterialKindMaterial MaterialKind = "material"
	MaterialKindPYQ      MaterialKind = "pyq"
	MaterialKindSolution MaterialKind = "solution"
)

// FileType represents how the content of a material is stored
type FileType string

const (
	FileTypeImage FileType = "img"
	FileTypeVideo FileType = "video"
	FileTypePDF   FileType = "pdf"
)

// FileTypes lists every file type
var FileTypes = []FileType{FileTypeImage, FileTypeVideo, FileTypePDF}

// Material represents a stored learning resource
type Material struct {
	ID        int64        `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	FileType  FileType     `json:"file_type" db:"file_type"`
	FileURL   string       `json:"file_url" db:"file_url"`
	Chapter   *int         `json:"chapter" db:"chapter"`
	Class     *int         `json:"class" db:"class"`
	Kind      MaterialKind `json:"type" db:"type"`
	Category  Category     `json:"category" db:"category"`
	PageCount *int         `json:"page_count,omitempty" db:"page_count"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// FilterKey is the tuple that determines which materials are visible.
// Nil Class means the class filter is not applied.
type FilterKey struct {
	Category Category
	Kind     MaterialKind
	Class    *int
}

// Matches reports whether a material is visible under the filter key
func (k FilterKey) Matches(m Material) bool {
	if m.Category != k.Category || m.Kind != k.Kind {
		return false
	}
	if k.Class == nil || m.Class == nil {
		return true
	}
	return *m.Class == *k.Class
}

// Equal compares two filter keys by value
func (k FilterKey) Equal(other FilterKey) bool {
	if k.Category != other.Category || k.Kind != other.Kind {
		return false
	}
	if k.Class == nil || other.Class == nil {
		return k.Class == nil && other.Class == nil
	}
	return *k.Class == *other.Class
}

// CreateMaterialRequest holds the fields a teacher submits when uploading a material
type CreateMaterialRequest struct {
	Name       string
	Category   string
	Kind       string
	FileType   string
	Chapter    string
	Class      string
	YouTubeURL string
}

// CategoryInfo is the public description of a category
type CategoryInfo struct {
	ID           Category `json:"id"`
	Title        string   `json:"title"`
	ClassOptions []int    `json:"class_options"`
}
