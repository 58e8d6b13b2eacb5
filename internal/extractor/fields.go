package extractor

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveTitle(sel *goquery.Selection) string {
	for _, selector := range titleSelectors {
		var title string
		sel.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			title = collapseSpace(s.Text())
			return title == ""
		})
		if title != "" {
			return title
		}
	}
	return ""
}

func resolveLink(sel *goquery.Selection, base *url.URL) string {
	for _, attr := range []string{"href", "data-url"} {
		if v, ok := sel.Attr(attr); ok {
			if abs := absoluteURL(base, v); abs != "" {
				return abs
			}
		}
	}

	var link string
	sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		link = absoluteURL(base, a.AttrOr("href", ""))
		return link == ""
	})
	return link
}

func resolveImage(sel *goquery.Selection, base *url.URL) string {
	img := sel
	if goquery.NodeName(sel) != "img" {
		img = sel.Find("img").First()
	}

	if img.Length() > 0 {
		for _, attr := range lazyImageAttrs {
			if abs := absoluteURL(base, img.AttrOr(attr, "")); abs != "" {
				return abs
			}
		}
		if abs := absoluteURL(base, firstSrcsetURL(img.AttrOr("srcset", ""))); abs != "" {
			return abs
		}
		if abs := absoluteURL(base, img.AttrOr("src", "")); abs != "" {
			return abs
		}
	}

	structured := sel.Filter(`[itemprop="image"]`)
	if structured.Length() == 0 {
		structured = sel.Find(`[itemprop="image"]`).First()
	}
	return absoluteURL(base, structured.AttrOr("content", ""))
}

// firstSrcsetURL returns the URL of the first srcset candidate.
func firstSrcsetURL(srcset string) string {
	first, _, _ := strings.Cut(srcset, ",")
	fields := strings.Fields(first)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// absoluteURL resolves raw against base. Anything that does not end up as an
// http(s) URL with a host is reported as "".
func absoluteURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return ""
	}
	return ref.String()
}
