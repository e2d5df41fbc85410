package crawl

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

const sitemapFetchTimeout = 5 * time.Second

// Engine drives the full per-target-URL crawl lifecycle (spec §4.H).
type Engine struct {
	logger arbor.ILogger
	client *http.Client
}

// New constructs an Engine. httpClient is used for the sitemap fetch; if
// nil a client with the sitemap timeout is used.
func New(logger arbor.ILogger, httpClient *http.Client) *Engine {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: sitemapFetchTimeout}
	}
	return &Engine{logger: logger, client: httpClient}
}

// Crawl runs the full lifecycle against targetURL and returns the
// aggregate Crawl Artifact, or an UNREACHABLE error if the homepage fails.
func (e *Engine) Crawl(ctx context.Context, targetURL string) (*Artifact, error) {
	session, err := newBrowserSession(ctx, e.logger)
	if err != nil {
		return nil, fmt.Errorf("start browser session: %w", err)
	}
	defer session.Close()

	homepage, err := navigatePage(ctx, session.browserCtx, targetURL, true)
	if err != nil {
		return nil, err
	}

	sitemapURLs := e.fetchSitemap(ctx, targetURL)
	subPageURLs := selectSubPages(targetURL, sitemapURLs, homepage.InternalLinks)

	pages := []Page{homepage}
	for _, subURL := range subPageURLs {
		page, err := navigatePage(ctx, session.browserCtx, subURL, false)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn().Err(err).Str("url", subURL).Msg("sub-page crawl failed, skipping")
			}
			// Sub-page failures are logged and skipped; they never fail
			// the overall crawl (spec §4.H step 8).
			continue
		}
		pages = append(pages, page)
	}

	cookies := e.collectCookies(session.browserCtx, targetURL)

	parsed, _ := url.Parse(targetURL)
	isHTTPS := parsed != nil && parsed.Scheme == "https"

	return &Artifact{
		TargetURL: targetURL,
		IsHTTPS:   isHTTPS,
		HasCSP:    hasCSP(homepage),
		Pages:     pages,
		Cookies:   cookies,
	}, nil
}

func hasCSP(homepage Page) bool {
	_, ok := homepage.ResponseHeaders["content-security-policy"]
	return ok
}

type sitemapURLSet struct {
	XMLName xml.Name       `xml:"urlset"`
	URLs    []sitemapEntry `xml:"url"`
}

type sitemapEntry struct {
	Loc string `xml:"loc"`
}

func (e *Engine) fetchSitemap(ctx context.Context, targetURL string) []string {
	base, err := url.Parse(targetURL)
	if err != nil {
		return nil
	}
	sitemapURL := fmt.Sprintf("%s://%s/sitemap.xml", base.Scheme, base.Host)

	reqCtx, cancel := context.WithTimeout(ctx, sitemapFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, sitemapURL, nil)
	if err != nil {
		return nil
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil
	}

	var set sitemapURLSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil
	}

	urls := make([]string, 0, len(set.URLs))
	for _, u := range set.URLs {
		if u.Loc != "" {
			urls = append(urls, u.Loc)
		}
	}
	return urls
}

func (e *Engine) collectCookies(browserCtx context.Context, targetURL string) []Cookie {
	var raw []*network.Cookie
	err := chromedp.Run(browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			cookies, err := network.GetCookies().WithURLs([]string{targetURL}).Do(ctx)
			if err != nil {
				return err
			}
			raw = cookies
			return nil
		}),
	)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn().Err(err).Msg("failed to collect cookies")
		}
		return nil
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		var expires *time.Time
		if c.Expires > 0 {
			t := time.Unix(int64(c.Expires), 0).UTC()
			expires = &t
		}
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  expires,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: string(c.SameSite),
		})
	}
	return cookies
}
