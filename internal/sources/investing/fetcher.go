package investing

import (
	"context"
	"strings"

	"github.com/chromedp/chromedp"

	"twmarket/internal/sources"
)

// ChromeFetcher loads pages in a headless Chrome and returns the body
// text, which for a JSON endpoint is the JSON document itself.
type ChromeFetcher struct {
	Headless bool
}

// Fetch navigates to url in a fresh browser context
func (f ChromeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.Flag("headless", f.Headless))
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var text string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.Evaluate(`document.body.innerText`, &text),
	); err != nil {
		return nil, err
	}
	return []byte(strings.TrimSpace(text)), nil
}

// ClientFetcher fetches pages with the plain HTTP client, for mirrors
// that do not need a browser.
type ClientFetcher struct {
	Client *sources.Client
}

// Fetch performs a GET through the shared client
func (f ClientFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.Client.Get(ctx, sourceName, url)
}
