// Package pdftest writes small, valid PDF files for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Bookmark is an outline entry. Page is 1-based; 0 leaves the entry without
// a destination.
type Bookmark struct {
	Level int
	Title string
	Page  int
}

// Builder accumulates pages, Info entries and bookmarks.
type Builder struct {
	pages     [][]string
	info      map[string]string
	bookmarks []Bookmark
}

func New() *Builder {
	return &Builder{info: map[string]string{}}
}

// Page appends a page showing one text line per element.
func (b *Builder) Page(lines ...string) *Builder {
	b.pages = append(b.pages, lines)
	return b
}

// Info sets a document information entry such as Title or Author.
func (b *Builder) Info(key, value string) *Builder {
	b.info[key] = value
	return b
}

// Bookmark appends an outline entry. Levels must not skip: each entry is at
// most one level deeper than the one before it.
func (b *Builder) Bookmark(level int, title string, page int) *Builder {
	b.bookmarks = append(b.bookmarks, Bookmark{Level: level, Title: title, Page: page})
	return b
}

// Bytes renders the document.
func (b *Builder) Bytes() []byte {
	objs := map[int]string{}
	const (
		catalog = 1
		pages   = 2
		font    = 3
		info    = 4
	)
	next := 5
	pageObj := make([]int, len(b.pages))
	for i := range b.pages {
		pageObj[i] = next
		next += 2
	}
	outlines := 0
	itemObj := make([]int, len(b.bookmarks))
	if len(b.bookmarks) > 0 {
		outlines = next
		next++
		for i := range b.bookmarks {
			itemObj[i] = next
			next++
		}
	}

	kids := make([]string, len(pageObj))
	for i, n := range pageObj {
		kids[i] = ref(n)
	}
	cat := fmt.Sprintf("<< /Type /Catalog /Pages %s", ref(pages))
	if outlines > 0 {
		cat += fmt.Sprintf(" /Outlines %s /PageMode /UseOutlines", ref(outlines))
	}
	objs[catalog] = cat + " >>"
	objs[pages] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pageObj))
	objs[font] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"

	keys := make([]string, 0, len(b.info))
	for k := range b.info {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var infoDict strings.Builder
	infoDict.WriteString("<<")
	for _, k := range keys {
		fmt.Fprintf(&infoDict, " /%s %s", k, literal(b.info[k]))
	}
	infoDict.WriteString(" >>")
	objs[info] = infoDict.String()

	for i, lines := range b.pages {
		var content strings.Builder
		content.WriteString("BT /F1 12 Tf 14 TL 72 720 Td")
		for _, line := range lines {
			fmt.Fprintf(&content, " %s Tj T*", literal(line))
		}
		content.WriteString(" ET")
		stream := content.String()
		objs[pageObj[i]] = fmt.Sprintf("<< /Type /Page /Parent %s /MediaBox [0 0 612 792] /Resources << /Font << /F1 %s >> >> /Contents %s >>",
			ref(pages), ref(font), ref(pageObj[i]+1))
		objs[pageObj[i]+1] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream)
	}

	if outlines > 0 {
		b.writeOutline(objs, outlines, itemObj, pageObj)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, next)
	for n := 1; n < next; n++ {
		offsets[n] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, objs[n])
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", next)
	for n := 1; n < next; n++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[n])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %s /Info %s >>\nstartxref\n%d\n%%%%EOF\n", next, ref(catalog), ref(info), xref)
	return buf.Bytes()
}

func (b *Builder) writeOutline(objs map[int]string, root int, itemObj, pageObj []int) {
	parent := make([]int, len(b.bookmarks))
	children := map[int][]int{}
	stack := []int{}
	for i, bm := range b.bookmarks {
		level := bm.Level
		if level < 1 {
			level = 1
		}
		for len(stack) >= level {
			stack = stack[:len(stack)-1]
		}
		p := root
		if len(stack) > 0 {
			p = itemObj[stack[len(stack)-1]]
		}
		parent[i] = p
		children[p] = append(children[p], i)
		stack = append(stack, i)
	}

	objs[root] = "<< /Type /Outlines" + linkage(children[root], itemObj) + " >>"
	for i, bm := range b.bookmarks {
		var d strings.Builder
		fmt.Fprintf(&d, "<< /Title %s /Parent %s", literal(bm.Title), ref(parent[i]))
		siblings := children[parent[i]]
		for j, s := range siblings {
			if s != i {
				continue
			}
			if j > 0 {
				fmt.Fprintf(&d, " /Prev %s", ref(itemObj[siblings[j-1]]))
			}
			if j < len(siblings)-1 {
				fmt.Fprintf(&d, " /Next %s", ref(itemObj[siblings[j+1]]))
			}
		}
		d.WriteString(linkage(children[itemObj[i]], itemObj))
		if bm.Page >= 1 && bm.Page <= len(pageObj) {
			fmt.Fprintf(&d, " /Dest [%s /XYZ 0 792 0]", ref(pageObj[bm.Page-1]))
		}
		d.WriteString(" >>")
		objs[itemObj[i]] = d.String()
	}
}

func linkage(kids []int, itemObj []int) string {
	if len(kids) == 0 {
		return ""
	}
	return fmt.Sprintf(" /First %s /Last %s /Count %d", ref(itemObj[kids[0]]), ref(itemObj[kids[len(kids)-1]]), len(kids))
}

func ref(n int) string {
	return fmt.Sprintf("%d 0 R", n)
}

func literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}

// Write renders the document into dir/name and returns the path.
func (b *Builder) Write(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}
