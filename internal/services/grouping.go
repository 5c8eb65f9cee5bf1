package services

import (
	"fmt"
	"slices"
	"strings"

	"github.com/studymaterials/backend/internal/models"
)

// GeneralChapterTitle is the group title of materials without a chapter
const GeneralChapterTitle = "General"

// ChapterGroup holds the materials of one chapter
type ChapterGroup struct {
	Title     string            `json:"title"`
	Materials []models.Material `json:"materials"`
}

// ChapterTitle returns "Chapter N" for a material with a chapter, or "General"
func ChapterTitle(m models.Material) string {
	if m.Chapter == nil {
		return GeneralChapterTitle
	}
	return fmt.Sprintf("Chapter %d", *m.Chapter)
}

// GroupByChapter groups materials by chapter title for presentation.
// Titles are ordered lexicographically ("Chapter 10" sorts before "Chapter 2")
// and "General" always comes last. Materials keep their input order inside a group.
func GroupByChapter(materials []models.Material) []ChapterGroup {
	index := make(map[string]int)
	groups := make([]ChapterGroup, 0)

	for _, m := range materials {
		title := ChapterTitle(m)
		i, ok := index[title]
		if !ok {
			i = len(groups)
			index[title] = i
			groups = append(groups, ChapterGroup{Title: title})
		}
		groups[i].Materials = append(groups[i].Materials, m)
	}

	slices.SortStableFunc(groups, func(a, b ChapterGroup) int {
		switch {
		case a.Title == b.Title:
			return 0
		case a.Title == GeneralChapterTitle:
			return 1
		case b.Title == GeneralChapterTitle:
			return -1
		default:
			return strings.Compare(a.Title, b.Title)
		}
	})
	return groups
}
