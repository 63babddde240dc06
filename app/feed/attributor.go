package feed

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

const (
	filteredSuffix    = "(Filtered)"
	attributionFormat = "[This is a filtered version of an RSS feed. Original source: %s]"
	unknownSource     = "unknown"
)

// Attributor marks a channel as a filtered derivative of its source. Annotating
// the same document twice leaves it unchanged after the first pass.
type Attributor struct {
	generator string
}

func NewAttributor(generator string) *Attributor {
	return &Attributor{generator: generator}
}

func AttributionMarker(source string) string {
	if source == "" {
		source = unknownSource
	}
	return fmt.Sprintf(attributionFormat, source)
}

func (a *Attributor) Annotate(doc *Document, source string) {
	channel := doc.channel

	a.annotateTitle(channel)
	description := a.annotateDescription(channel, source)

	if childElement(channel, "generator") == nil {
		xmlquery.AddChild(channel, newElement("generator", a.generator))
	}

	if source != "" && childElement(channel, "link") == nil {
		insertBefore(channel, description.NextSibling, newElement("link", source))
	}
}

func (a *Attributor) annotateTitle(channel *xmlquery.Node) {
	title := childElement(channel, "title")
	text := elementText(title)
	if text == "" || strings.HasSuffix(text, filteredSuffix) {
		return
	}
	setText(title, text+" "+filteredSuffix)
}

func (a *Attributor) annotateDescription(channel *xmlquery.Node, source string) *xmlquery.Node {
	marker := AttributionMarker(source)

	description := childElement(channel, "description")
	if description == nil {
		description = newElement("description", marker)
		insertBefore(channel, channel.FirstChild, description)
		return description
	}

	text := elementText(description)
	if strings.HasPrefix(text, marker) {
		return description
	}

	switch {
	case text == "":
		setText(description, marker)
	case hasElementChildren(description):
		// Keep embedded markup intact and put the marker in front of it.
		insertBefore(description, description.FirstChild, newText(marker+"\n\n"))
	default:
		setText(description, marker+"\n\n"+text)
	}
	return description
}
