package feed

import (
	"fmt"
	"log/slog"
)

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Result reports how many items an Apply call kept and dropped.
type Result struct {
	Remaining int
	Removed   int
}

// Apply removes every item the predicate rejects from doc. Items keep their
// relative order and everything else in the document is left untouched.
func (f *Filterer) Apply(doc *Document, pred Predicate) Result {
	items := doc.Items()
	if pred.IsEmpty() {
		return Result{Remaining: len(items)}
	}

	var result Result
	for _, item := range items {
		keywords := item.Keywords()
		keep, reason := f.applyPredicate(keywords, item.KeywordsText(), pred)
		if keep {
			result.Remaining++
			continue
		}

		slog.Debug("Item removed", "title", item.Title(), "keywords", keywords.Sorted(), "reason", reason)
		doc.remove(item)
		result.Removed++
	}

	return result
}

// applyPredicate checks the parsed keywords against the include and exclude sets
// and the raw keywords text against the pattern.
func (f *Filterer) applyPredicate(keywords KeywordSet, text string, pred Predicate) (bool, string) {
	if len(pred.Include) > 0 && !keywords.Intersects(pred.Include) {
		return false, fmt.Sprintf("does not contain any of %v", pred.Include.Sorted())
	}

	if len(pred.Exclude) > 0 && keywords.Intersects(pred.Exclude) {
		return false, fmt.Sprintf("contains one of %v", pred.Exclude.Sorted())
	}

	if pred.Pattern != nil && (text == "" || !pred.Pattern.MatchString(text)) {
		return false, fmt.Sprintf("keywords do not match %q", pred.Pattern.String())
	}

	return true, ""
}
