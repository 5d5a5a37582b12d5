package portal

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrTableNotFound is returned when the page has no element with the expected id.
var ErrTableNotFound = errors.New("data table not found")

// Table holds the text cells of one HTML table. Head rows include th and td
// cells; body rows include td cells only and are dropped when empty.
type Table struct {
	Head [][]string
	Body [][]string
}

// ParseTable extracts the table with the given id from an HTML document.
func ParseTable(r io.Reader, id string) (Table, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Table{}, err
	}
	node := findByID(doc, id)
	if node == nil || node.DataAtom != atom.Table {
		return Table{}, ErrTableNotFound
	}

	var t Table
	for section := node.FirstChild; section != nil; section = section.NextSibling {
		if section.Type != html.ElementNode {
			continue
		}
		switch section.DataAtom {
		case atom.Thead:
			for _, tr := range childElements(section, atom.Tr) {
				t.Head = append(t.Head, cellTexts(tr, atom.Th, atom.Td))
			}
		case atom.Tbody:
			for _, tr := range childElements(section, atom.Tr) {
				if cells := cellTexts(tr, atom.Td); len(cells) > 0 {
					t.Body = append(t.Body, cells)
				}
			}
		}
	}
	return t, nil
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		for _, a := range n.Attr {
			if a.Key == "id" && a.Val == id {
				return n
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func childElements(n *html.Node, want atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == want {
			out = append(out, c)
		}
	}
	return out
}

func cellTexts(tr *html.Node, kinds ...atom.Atom) []string {
	var out []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		for _, k := range kinds {
			if c.DataAtom == k {
				out = append(out, normalizeText(textContent(c)))
				break
			}
		}
	}
	return out
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// normalizeText trims and collapses internal whitespace runs to one space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
