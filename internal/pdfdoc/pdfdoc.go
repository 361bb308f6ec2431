// Package pdfdoc reads page text, document information and the outline of a
// PDF file.
package pdfdoc

import (
	"errors"
	"fmt"
	"strings"

	"pdfagent/internal/util"

	"github.com/ledongthuc/pdf"
)

// Page is the plain text of one page. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Field is one entry of the document information dictionary.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// OutlineEntry is one bookmark. Page is -1 when the target cannot be resolved.
type OutlineEntry struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// Document is everything the service reads from an uploaded file.
type Document struct {
	Path     string         `json:"path"`
	Pages    []Page         `json:"pages"`
	Metadata []Field        `json:"metadata"`
	Outline  []OutlineEntry `json:"outline"`
}

var ErrMalformed = errors.New("malformed pdf")

// infoKeys maps Info dictionary keys to the names reported to callers, in
// reporting order.
var infoKeys = []struct{ pdf, out string }{
	{"Title", "title"},
	{"Author", "author"},
	{"Subject", "subject"},
	{"Keywords", "keywords"},
	{"Creator", "creator"},
	{"Producer", "producer"},
	{"CreationDate", "creationDate"},
	{"ModDate", "modDate"},
	{"Trapped", "trapped"},
}

// maxOutlineEntries bounds outline walks on files with cyclic bookmark links.
const maxOutlineEntries = 10000

// Load reads pages, metadata and outline in one pass over the file.
func Load(path string) (Document, error) {
	doc := Document{Path: path}
	err := withReader(path, func(r *pdf.Reader) error {
		pages, err := readPages(r)
		if err != nil {
			return err
		}
		doc.Pages = pages
		doc.Metadata = readMetadata(r)
		doc.Outline = readOutline(r)
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Text joins the non-empty pages with blank lines and returns the rune offset
// at which each joined page starts, parallel to the returned page numbers.
func (d Document) Text() (text string, offsets []int, numbers []int) {
	var b strings.Builder
	pos := 0
	for _, p := range d.Pages {
		if p.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
			pos += 2
		}
		offsets = append(offsets, pos)
		numbers = append(numbers, p.Number)
		b.WriteString(p.Text)
		pos += len([]rune(p.Text))
	}
	return b.String(), offsets, numbers
}

func PageCount(path string) (int, error) {
	n := 0
	err := withReader(path, func(r *pdf.Reader) error {
		n = r.NumPage()
		return nil
	})
	return n, err
}

func Metadata(path string) ([]Field, error) {
	var out []Field
	err := withReader(path, func(r *pdf.Reader) error {
		out = readMetadata(r)
		return nil
	})
	return out, err
}

func TableOfContents(path string) ([]OutlineEntry, error) {
	var out []OutlineEntry
	err := withReader(path, func(r *pdf.Reader) error {
		out = readOutline(r)
		return nil
	})
	return out, err
}

func withReader(path string, fn func(r *pdf.Reader) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrMalformed, rec)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return fn(r)
}

func readPages(r *pdf.Reader) ([]Page, error) {
	n := r.NumPage()
	pages := make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		pages = append(pages, Page{Number: i, Text: util.SanitizeText(text)})
	}
	return pages, nil
}

func readMetadata(r *pdf.Reader) []Field {
	info := r.Trailer().Key("Info")
	if info.Kind() != pdf.Dict {
		return nil
	}
	out := make([]Field, 0, len(infoKeys))
	for _, k := range infoKeys {
		v := info.Key(k.pdf)
		var s string
		switch v.Kind() {
		case pdf.String:
			s = v.Text()
		case pdf.Name:
			s = v.Name()
		case pdf.Bool:
			s = fmt.Sprint(v.Bool())
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, Field{Key: k.out, Value: s})
	}
	return out
}

func readOutline(r *pdf.Reader) []OutlineEntry {
	root := r.Trailer().Key("Root")
	first := root.Key("Outlines").Key("First")
	if first.IsNull() {
		return nil
	}
	pageIDs := make(map[string]int, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if v := r.Page(i).V; !v.IsNull() {
			if _, dup := pageIDs[v.String()]; !dup {
				pageIDs[v.String()] = i
			}
		}
	}
	named := root.Key("Dests")

	var out []OutlineEntry
	var walk func(item pdf.Value, level int)
	walk = func(item pdf.Value, level int) {
		for !item.IsNull() && len(out) < maxOutlineEntries {
			out = append(out, OutlineEntry{
				Level: level,
				Title: strings.TrimSpace(item.Key("Title").Text()),
				Page:  resolvePage(item, named, pageIDs),
			})
			walk(item.Key("First"), level+1)
			item = item.Key("Next")
		}
	}
	walk(first, 1)
	return out
}

func resolvePage(item, named pdf.Value, pageIDs map[string]int) int {
	dest := item.Key("Dest")
	if dest.IsNull() {
		if a := item.Key("A"); a.Key("S").Name() == "GoTo" {
			dest = a.Key("D")
		}
	}
	if dest.Kind() == pdf.Name && named.Kind() == pdf.Dict {
		dest = named.Key(dest.Name())
	}
	if dest.Kind() == pdf.Dict {
		dest = dest.Key("D")
	}
	if dest.Kind() != pdf.Array || dest.Len() == 0 {
		return -1
	}
	target := dest.Index(0)
	if target.Kind() == pdf.Integer {
		return int(target.Int64()) + 1
	}
	if n, ok := pageIDs[target.String()]; ok {
		return n
	}
	return -1
}
