package importer

import (
	"strings"

	"github.com/Kerhoff/wishlister/internal/validate"
)

// Mapping names the CSV header used for each item field. Only URL is required.
type Mapping struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Image string `json:"image"`
	Note  string `json:"note"`
}

var synonyms = struct {
	url, title, image, note []string
}{
	url:   []string{"url", "link", "href", "ссылка"},
	title: []string{"title", "name", "item", "название", "наименование"},
	image: []string{"image", "image_url", "img", "picture", "photo", "картинка", "изображение"},
	note:  []string{"note", "notes", "comment", "description", "заметка", "комментарий"},
}

// GuessMapping picks a header for each field by matching common names
// case-insensitively
func GuessMapping(headers []string) Mapping {
	return Mapping{
		URL:   guess(headers, synonyms.url),
		Title: guess(headers, synonyms.title),
		Image: guess(headers, synonyms.image),
		Note:  guess(headers, synonyms.note),
	}
}

func guess(headers, names []string) string {
	for _, name := range names {
		for _, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return h
			}
		}
	}
	return ""
}

// Validate checks that the URL column is chosen and that every chosen
// column exists
func (m Mapping) Validate(headers []string) error {
	errs := &validate.Errors{}
	if m.URL == "" {
		errs.Add("url", "Choose the column with item links")
	}

	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}
	for field, col := range map[string]string{"url": m.URL, "title": m.Title, "image": m.Image, "note": m.Note} {
		if col != "" && !known[col] {
			errs.Add(field, "Unknown column "+col)
		}
	}
	return errs.Err()
}

// columns resolves the mapping to row indexes, -1 for unmapped fields
type columns struct {
	url, title, image, note int
}

func (m Mapping) columns(headers []string) columns {
	idx := func(name string) int {
		if name == "" {
			return -1
		}
		for i, h := range headers {
			if h == name {
				return i
			}
		}
		return -1
	}
	return columns{url: idx(m.URL), title: idx(m.Title), image: idx(m.Image), note: idx(m.Note)}
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
