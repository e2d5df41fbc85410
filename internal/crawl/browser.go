package crawl

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// fixedUserAgent is a stable desktop UA string so sites don't serve a
// reduced mobile/bot variant of the page.
const fixedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const startupSmokeTestTimeout = 15 * time.Second

// browserSession owns one per-job browser context, created fresh for every
// crawl job and torn down at the end of it: jobs target different origins
// concurrently and must not share cookies or storage.
type browserSession struct {
	allocatorCtx    context.Context
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
}

// newBrowserSession launches a fresh headless browser context with
// service workers disabled at the context level (spec §4.H step 1), and
// runs a startup smoke test before returning it usable.
func newBrowserSession(ctx context.Context, logger arbor.ILogger) (*browserSession, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		// Service workers can persist fingerprinting/tracking state across
		// navigations within the same context; disabling them keeps each
		// page observation isolated.
		chromedp.Flag("disable-service-workers", true),
		chromedp.UserAgent(fixedUserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, startupSmokeTestTimeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser session failed startup smoke test: %w", err)
	}

	if logger != nil {
		logger.Debug().Msg("browser session started")
	}

	return &browserSession{
		allocatorCtx:    allocatorCtx,
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
	}, nil
}

func (s *browserSession) Close() {
	s.browserCancel()
	s.allocatorCancel()
}
