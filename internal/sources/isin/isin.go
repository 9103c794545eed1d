// Package isin reads the security listing tables of the ISIN site.
package isin

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	apperrors "twmarket/internal/errors"
	"twmarket/internal/sources"
	"twmarket/pkg/contracts/domain"
)

const sourceName = "isin"

// Market selects a listing table
type Market string

const (
	MarketTSE   Market = "tse"
	MarketOTC   Market = "otc"
	MarketIndex Market = "index"
)

// Source is the ISIN listing adapter
type Source struct {
	client  *sources.Client
	baseURL string
}

// New builds an adapter rooted at baseURL
func New(client *sources.Client, baseURL string) *Source {
	return &Source{client: client, baseURL: baseURL}
}

// Listing fetches the listing of market
func (s *Source) Listing(ctx context.Context, market Market) ([]domain.Listing, error) {
	var path string
	switch market {
	case MarketTSE:
		path = "/isin/class_main.jsp?market=1&issuetype=1"
	case MarketOTC:
		path = "/isin/class_main.jsp?market=2&issuetype=4"
	case MarketIndex:
		path = "/isin/C_public.jsp?strMode=11"
	default:
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown listing market %q", market))
	}

	page, err := s.client.GetBig5(ctx, sourceName, strings.TrimRight(s.baseURL, "/")+path)
	if err != nil {
		return nil, err
	}
	rows, err := tableRows(page)
	if err != nil {
		return nil, err
	}
	if market == MarketIndex {
		return indexListing(rows), nil
	}
	return equityListing(rows), nil
}

// Equity tables: ISIN, listing date, symbol, name, market, CFI, industry.
func equityListing(rows [][]string) []domain.Listing {
	var out []domain.Listing
	for _, cells := range rows {
		if len(cells) < 7 || cells[2] == "" {
			continue
		}
		out = append(out, domain.Listing{
			Symbol:   cells[2],
			Name:     cells[3],
			Market:   cells[4],
			Industry: cells[6],
		})
	}
	return out
}

// The index table packs symbol and name into the first cell, separated by
// an ideographic space.
func indexListing(rows [][]string) []domain.Listing {
	var out []domain.Listing
	for _, cells := range rows {
		if len(cells) == 0 {
			continue
		}
		symbol, name, ok := strings.Cut(cells[0], "　")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		out = append(out, domain.Listing{Symbol: strings.TrimSpace(symbol), Name: strings.TrimSpace(name)})
	}
	return out
}

// tableRows returns the cell texts of every row after the header of the
// first table with class h4.
func tableRows(page string) ([][]string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, apperrors.NewParsingError("parse isin page", err)
	}
	table := find(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "table" && hasClass(n, "h4")
	})
	if table == nil {
		return nil, apperrors.NewSchemaError(sourceName, "listing table not found")
	}

	var rows [][]string
	walk(table, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "tr" {
			return
		}
		var cells []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "td" {
				cells = append(cells, strings.TrimSpace(text(c)))
			}
		}
		rows = append(rows, cells)
	})
	if len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" {
			for _, c := range strings.Fields(a.Val) {
				if c == class {
					return true
				}
			}
		}
	}
	return false
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(text(c))
	}
	return b.String()
}
