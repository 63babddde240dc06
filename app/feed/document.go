package feed

import (
	"bytes"
	"errors"
	"strings"

	"github.com/antchfx/xmlquery"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Document is a parsed feed that can be filtered and annotated in place.
type Document struct {
	root    *xmlquery.Node
	channel *xmlquery.Node
}

type Item struct {
	node *xmlquery.Node
}

func Parse(data []byte) (*Document, error) {
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	channel := findElement(root, "channel")
	if channel == nil {
		return nil, &ParseError{Err: errors.New("document has no channel element")}
	}

	return &Document{root: root, channel: channel}, nil
}

// Items returns the item elements in document order. RSS 1.0 places items next to
// the channel rather than inside it, so the whole tree is searched.
func (d *Document) Items() []*Item {
	var items []*Item
	var walk func(n *xmlquery.Node)
	walk = func(n *xmlquery.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != xmlquery.ElementNode {
				continue
			}
			if c.Data == "item" && c.Prefix == "" {
				items = append(items, &Item{node: c})
				continue
			}
			walk(c)
		}
	}
	walk(d.root)
	return items
}

func (d *Document) remove(item *Item) {
	if item.node.Parent != nil {
		xmlquery.RemoveFromTree(item.node)
	}
}

// Bytes serializes the document as UTF-8 with an XML declaration. The source
// declaration is dropped since the parser already decoded the original charset.
func (d *Document) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	for n := d.root.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.DeclarationNode {
			continue
		}
		if n.Type == xmlquery.TextNode && strings.TrimSpace(n.Data) == "" {
			continue
		}
		buf.WriteString(n.OutputXML(true))
	}
	buf.WriteString("\n")
	return buf.Bytes()
}

func (d *Document) ChannelTitle() string {
	return elementText(childElement(d.channel, "title"))
}

func (i *Item) Title() string {
	return elementText(childElement(i.node, "title"))
}

// KeywordsText returns the raw keywords field: a namespace-qualified element such as
// itunes:keywords if present, otherwise a bare keywords element.
func (i *Item) KeywordsText() string {
	el := prefixedChildElement(i.node, "keywords")
	if el == nil {
		el = childElement(i.node, "keywords")
	}
	return elementText(el)
}

func (i *Item) Keywords() KeywordSet {
	text := i.KeywordsText()
	if text == "" {
		return KeywordSet{}
	}
	return ParseKeywords(text)
}

func findElement(n *xmlquery.Node, name string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		if c.Data == name && c.Prefix == "" {
			return c
		}
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

// childElement finds a direct, unprefixed child element.
func childElement(n *xmlquery.Node, name string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name && c.Prefix == "" {
			return c
		}
	}
	return nil
}

// prefixedChildElement finds a direct child element with the given local name in any prefixed namespace.
func prefixedChildElement(n *xmlquery.Node, name string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == name && c.Prefix != "" {
			return c
		}
	}
	return nil
}

func elementText(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}

func hasElementChildren(n *xmlquery.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return true
		}
	}
	return false
}

func setText(n *xmlquery.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		xmlquery.RemoveFromTree(c)
		c = next
	}
	xmlquery.AddChild(n, newText(text))
}

func newElement(name, text string) *xmlquery.Node {
	el := &xmlquery.Node{Type: xmlquery.ElementNode, Data: name}
	if text != "" {
		xmlquery.AddChild(el, newText(text))
	}
	return el
}

func newText(text string) *xmlquery.Node {
	return &xmlquery.Node{Type: xmlquery.TextNode, Data: text}
}

// insertBefore links n into parent ahead of ref, or appends it when ref is nil.
func insertBefore(parent, ref, n *xmlquery.Node) {
	if ref == nil {
		xmlquery.AddChild(parent, n)
		return
	}

	n.Parent = parent
	n.PrevSibling = ref.PrevSibling
	n.NextSibling = ref
	if ref.PrevSibling != nil {
		ref.PrevSibling.NextSibling = n
	} else {
		parent.FirstChild = n
	}
	ref.PrevSibling = n
}
