package extractor

// Strategy is one structural selector group. Groups are tried in order and
// the first group yielding at least one usable candidate wins.
type Strategy struct {
	Name     string
	Selector string
}

// Default selector groups, from most to least distinctive.
var (
	PostMarkers = Strategy{
		Name: "post-markers",
		Selector: `[itemtype*="schema.org/Article"], [itemtype*="schema.org/BlogPosting"], [itemtype*="schema.org/NewsArticle"], ` +
			`[data-post-id], .post, .post-item, .entry, .news-item, .event_list_item, .board-item`,
	}
	Articles  = Strategy{Name: "articles", Selector: "article"}
	ListItems = Strategy{Name: "list-items", Selector: "li"}
	Blocks    = Strategy{Name: "blocks", Selector: "section, div"}
)

// DefaultStrategies returns the built-in groups in evaluation order.
func DefaultStrategies() []Strategy {
	return []Strategy{PostMarkers, Articles, ListItems, Blocks}
}

// Field cascades. Each entry is tried in order until one yields a value.
var (
	titleSelectors = []string{
		`[itemprop="headline"], [itemprop="name"], .post-title, .entry-title, .headline, .event_link`,
		"h1, h2, h3, h4",
		".title",
	}
	lazyImageAttrs = []string{"data-src", "data-lazy-src", "lazy-src"}
)
