package crawler

import "github.com/PuerkitoBio/goquery"

// Strategy locates a fragment under root. It reports false when nothing
// matched.
type Strategy interface {
	TryExtract(root *goquery.Selection) (*goquery.Selection, bool)
}

// CSS is a Strategy backed by a goquery selector.
type CSS string

// TryExtract implements Strategy.
func (c CSS) TryExtract(root *goquery.Selection) (*goquery.Selection, bool) {
	if c == "" || root == nil {
		return nil, false
	}
	sel := root.Find(string(c))
	if sel.Length() == 0 {
		return nil, false
	}
	return sel, true
}

// Chain tries each strategy in order; the first match wins.
type Chain []Strategy

// TryExtract implements Strategy.
func (c Chain) TryExtract(root *goquery.Selection) (*goquery.Selection, bool) {
	for _, s := range c {
		if sel, ok := s.TryExtract(root); ok {
			return sel, true
		}
	}
	return nil, false
}

// ChainOf builds a Chain of CSS strategies, skipping empty selectors.
func ChainOf(selectors ...string) Chain {
	chain := make(Chain, 0, len(selectors))
	for _, s := range selectors {
		if s == "" {
			continue
		}
		chain = append(chain, CSS(s))
	}
	return chain
}
