package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/shelfmark/shelf/internal/records"
)

const netscapeDoctype = "NETSCAPE-Bookmark-file-1"

// WriteHTML writes a Netscape bookmark file, the format browsers import.
// Bookmarks are grouped under one <H3> per folder; unfiled bookmarks come
// first.
func WriteHTML(w io.Writer, bookmarks []records.Bookmark, folders []records.Folder) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: netscapeDoctype})

	doc.AppendChild(element(atom.Meta,
		html.Attribute{Key: "http-equiv", Val: "Content-Type"},
		html.Attribute{Key: "content", Val: "text/html; charset=UTF-8"}))
	doc.AppendChild(withText(element(atom.Title), "Bookmarks"))
	doc.AppendChild(withText(element(atom.H1), "Bookmarks"))

	root := element(atom.Dl)
	doc.AppendChild(root)

	byFolder := map[string][]records.Bookmark{}
	known := folderNames(folders)
	for _, b := range bookmarks {
		key := ""
		if b.FolderID != nil {
			if _, ok := known[*b.FolderID]; ok {
				key = *b.FolderID
			}
		}
		byFolder[key] = append(byFolder[key], b)
	}

	for _, b := range byFolder[""] {
		appendBookmark(root, b)
	}
	for _, f := range folders {
		items := byFolder[f.ID]
		dt := element(atom.Dt)
		dt.AppendChild(withText(element(atom.H3,
			html.Attribute{Key: "add_date", Val: unix(f.CreatedAt.Unix())}), f.Name))
		list := element(atom.Dl)
		for _, b := range items {
			appendBookmark(list, b)
		}
		dt.AppendChild(list)
		root.AppendChild(dt)
	}

	if err := html.Render(w, doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

func appendBookmark(list *html.Node, b records.Bookmark) {
	attrs := []html.Attribute{
		{Key: "href", Val: b.URL},
		{Key: "add_date", Val: unix(b.CreatedAt.Unix())},
	}
	if b.LastVisited != nil {
		attrs = append(attrs, html.Attribute{Key: "last_visit", Val: unix(b.LastVisited.Unix())})
	}
	if len(b.Tags) > 0 {
		attrs = append(attrs, html.Attribute{Key: "tags", Val: strings.Join(b.Tags, ",")})
	}
	if b.Favicon != nil && *b.Favicon != "" {
		attrs = append(attrs, html.Attribute{Key: "icon_uri", Val: *b.Favicon})
	}

	dt := element(atom.Dt)
	dt.AppendChild(withText(element(atom.A, attrs...), b.Title))
	list.AppendChild(dt)
	if desc := deref(b.Description); desc != "" {
		list.AppendChild(withText(element(atom.Dd), desc))
	}
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func withText(n *html.Node, text string) *html.Node {
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

func unix(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	return strconv.FormatInt(sec, 10)
}
