package models

import "slices"

// ClassOptions returns the permitted class levels for a category in ascending order.
// An empty slice means no class concept applies to the category.
func ClassOptions(c Category) []int {
	switch c {
	case CategoryJEE, CategoryNEET:
		return []int{11, 12}
	case CategoryNCERT:
		return []int{6, 7, 8, 9, 10, 11, 12}
	case CategoryCUET, CategoryNTSE:
		return []int{10, 11, 12}
	default:
		return []int{}
	}
}

// IsValid checks if the category is one of the known tracks
func (c Category) IsValid() bool {
	return slices.Contains(Categories, c)
}

// AllowsClass checks if the class level is permitted for the category
func (c Category) AllowsClass(class int) bool {
	return slices.Contains(ClassOptions(c), class)
}

// Title returns the display title of the category
func (c Category) Title() string {
	switch c {
	case CategoryJEE:
		return "JEE Materials"
	case CategoryNCERT:
		return "NCERT Materials"
	case CategoryNEET:
		return "NEET Materials"
	case CategoryOlympiad:
		return "Olympiad Materials"
	case CategoryCUET:
		return "CUET Materials"
	case CategoryNTSE:
		return "NTSE Materials"
	default:
		return "Study Materials"
	}
}

// IsValid checks if the material kind is known
func (k MaterialKind) IsValid() bool {
	switch k {
	case MaterialKindMaterial, MaterialKindPYQ, MaterialKindSolution:
		return true
	default:
		return false
	}
}

// IsValid checks if the file type is known
func (t FileType) IsValid() bool {
	return slices.Contains(FileTypes, t)
}

// IsStored reports whether content of this type lives in object storage
func (t FileType) IsStored() bool {
	return t == FileTypeImage || t == FileTypePDF
}
