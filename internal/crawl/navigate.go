package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	domContentLoadedTimeout = 25 * time.Second
	loadSettleTimeout       = 6 * time.Second
	jsSettleWindow          = 2 * time.Second
	bodyTextPrefixLen       = 5000
)

// trackingParamNames flags query parameters commonly used for click/campaign
// tracking, attached per-request in the Crawl Artifact.
var trackingParamNames = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "fbclid", "msclkid", "mc_eid", "_ga", "ref", "affiliate_id",
}

// navigatePage drives one page visit: installs the instrumentation script,
// navigates and waits for the page to settle, captures network requests via
// chromedp.ListenTarget, then runs failure detection.
func navigatePage(ctx context.Context, browserCtx context.Context, targetURL string, isHomepage bool) (Page, error) {
	pageCtx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()

	var requests []Request
	var redirects []Redirect
	var wsURLsSeen []string
	var mainDocHeaders map[string]string
	var mainDocStatus int64 = 200
	var mu sync.Mutex

	chromedp.ListenTarget(pageCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventWebSocketCreated:
			mu.Lock()
			wsURLsSeen = append(wsURLsSeen, e.URL)
			mu.Unlock()
		case *network.EventRequestWillBeSent:
			mu.Lock()
			defer mu.Unlock()
			if e.RedirectResponse != nil {
				redirects = append(redirects, Redirect{
					From:       e.RedirectResponse.URL,
					To:         e.Request.URL,
					StatusCode: int(e.RedirectResponse.Status),
				})
			}
			requests = append(requests, Request{
				URL:            e.Request.URL,
				Method:         e.Request.Method,
				ResourceType:   e.Type.String(),
				TrackingParams: extractTrackingParams(e.Request.URL),
				HasPostData:    e.Request.HasPostData,
			})
		case *network.EventResponseReceived:
			if e.Type == network.ResourceTypeDocument && e.Response.URL == targetURL {
				mu.Lock()
				headers := make(map[string]string, len(e.Response.Headers))
				for k, v := range e.Response.Headers {
					if s, ok := v.(string); ok {
						headers[strings.ToLower(k)] = s
					}
				}
				mainDocHeaders = headers
				mainDocStatus = e.Response.Status
				mu.Unlock()
			}
		}
	})

	var finalURL string
	var bodyText string
	var hadResponse bool

	runErr := chromedp.Run(pageCtx,
		network.Enable(),
		page.AddScriptToEvaluateOnNewDocument(instrumentationScript),
		chromedp.ActionFunc(func(ctx context.Context) error {
			navCtx, navCancel := context.WithTimeout(ctx, domContentLoadedTimeout)
			defer navCancel()
			if err := chromedp.Run(navCtx, chromedp.Navigate(targetURL)); err != nil {
				return err
			}
			hadResponse = true
			return nil
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			waitCtx, waitCancel := context.WithTimeout(ctx, loadSettleTimeout)
			defer waitCancel()
			_ = chromedp.Run(waitCtx, chromedp.WaitReady("body"))
			return nil
		}),
		chromedp.Sleep(jsSettleWindow),
		chromedp.Location(&finalURL),
		chromedp.Text("body", &bodyText, chromedp.NodeVisible),
	)

	unreachable := false
	var signals []string

	if runErr != nil {
		unreachable = true
		signals = []string{"driver_exception"}
	} else {
		mu.Lock()
		nonDataRequests := 0
		for _, r := range requests {
			if !strings.HasPrefix(r.URL, "data:") {
				nonDataRequests++
			}
		}
		mu.Unlock()

		obs := navigationObservation{
			HasResponse:        hadResponse,
			StatusCode:         int(mainDocStatus),
			FinalURL:           finalURL,
			NonDataURIRequests: nonDataRequests,
			BodyText:           bodyText,
		}
		signals = detectFailureSignals(obs)
		unreachable = isUnreachable(signals, isHomepage)
	}

	fp := readFingerprintingState(pageCtx)
	links, scripts, storage, _ := readPageInventory(pageCtx)
	mu.Lock()
	wsURLs := append([]string(nil), wsURLsSeen...)
	mu.Unlock()

	bodyPrefix := bodyText
	if len(bodyPrefix) > bodyTextPrefixLen {
		bodyPrefix = bodyPrefix[:bodyTextPrefixLen]
	}

	mu.Lock()
	pageRequests := append([]Request(nil), requests...)
	pageRedirects := append([]Redirect(nil), redirects...)
	mu.Unlock()

	result := Page{
		URL:             targetURL,
		IsHomepage:      isHomepage,
		StatusCode:      int(mainDocStatus),
		Requests:        pageRequests,
		Redirects:       pageRedirects,
		WebSocketURLs:   wsURLs,
		Scripts:         scripts,
		Storage:         storage,
		InternalLinks:   links,
		BodyTextPrefix:  bodyPrefix,
		ResponseHeaders: mainDocHeaders,
		Fingerprinting:  fp,
		Unreachable:     unreachable,
		FailureSignals:  signals,
	}

	if unreachable {
		return result, fmt.Errorf("UNREACHABLE:%s:%s", strings.Join(signals, ","), targetURL)
	}
	return result, nil
}

func readFingerprintingState(ctx context.Context) Fingerprinting {
	var raw string
	if err := chromedp.Run(ctx, chromedp.Evaluate(readInstrumentationState, &raw)); err != nil || raw == "" || raw == "null" {
		return Fingerprinting{}
	}

	var parsed struct {
		CanvasFingerprint bool         `json:"canvasFingerprint"`
		WebGLFingerprint  bool         `json:"webglFingerprint"`
		FontFingerprint   bool         `json:"fontFingerprint"`
		Keylogger         bool         `json:"keylogger"`
		FormSnooping      bool         `json:"formSnooping"`
		ServiceWorker     bool         `json:"serviceWorker"`
		Beacons           []BeaconCall `json:"beacons"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Fingerprinting{}
	}

	return Fingerprinting{
		Canvas:        parsed.CanvasFingerprint,
		WebGL:         parsed.WebGLFingerprint,
		Font:          parsed.FontFingerprint,
		Keylogger:     parsed.Keylogger,
		FormSnooping:  parsed.FormSnooping,
		ServiceWorker: parsed.ServiceWorker,
		Beacons:       parsed.Beacons,
	}
}

const inventoryScript = `
(function() {
  var links = Array.prototype.slice.call(document.querySelectorAll('a[href]'))
    .map(function(a) { return a.href; });

  var scriptsExternal = [];
  var scriptsInline = [];
  Array.prototype.slice.call(document.querySelectorAll('script')).forEach(function(s) {
    if (s.src) {
      scriptsExternal.push(s.src);
    } else if (s.textContent) {
      var text = s.textContent;
      var trackerSignature = /gtag|fbq|_satellite|analytics|dataLayer/i.test(text);
      scriptsInline.push({ length: text.length, trackerSignaturePresent: trackerSignature });
    }
  });

  var storage = [];
  function collect(store) {
    try {
      for (var i = 0; i < store.length; i++) {
        var key = store.key(i);
        var value = store.getItem(key) || '';
        storage.push({ key: key, value: value.substring(0, 200) });
      }
    } catch (e) {}
  }
  collect(window.localStorage);
  collect(window.sessionStorage);

  return JSON.stringify({ links: links, scriptsExternal: scriptsExternal, scriptsInline: scriptsInline, storage: storage });
})();
`

func readPageInventory(ctx context.Context) ([]string, ScriptInventory, []StorageEntry, []string) {
	var raw string
	if err := chromedp.Run(ctx, chromedp.Evaluate(inventoryScript, &raw)); err != nil || raw == "" {
		return nil, ScriptInventory{}, nil, nil
	}

	var parsed struct {
		Links          []string `json:"links"`
		ScriptsExternal []string `json:"scriptsExternal"`
		ScriptsInline   []struct {
			Length                  int  `json:"length"`
			TrackerSignaturePresent bool `json:"trackerSignaturePresent"`
		} `json:"scriptsInline"`
		Storage []struct {
			Key   string `json:"key"`
			Value string `json:"value"`
		} `json:"storage"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, ScriptInventory{}, nil, nil
	}

	inline := make([]InlineScript, 0, len(parsed.ScriptsInline))
	for _, s := range parsed.ScriptsInline {
		inline = append(inline, InlineScript{Length: s.Length, TrackerSignaturePresent: s.TrackerSignaturePresent})
	}
	storage := make([]StorageEntry, 0, len(parsed.Storage))
	for _, s := range parsed.Storage {
		storage = append(storage, StorageEntry{Key: s.Key, ValueTruncated: s.Value})
	}

	return parsed.Links, ScriptInventory{ExternalURLs: parsed.ScriptsExternal, Inline: inline}, storage, nil
}

func extractTrackingParams(rawURL string) []string {
	var found []string
	for _, name := range trackingParamNames {
		if strings.Contains(rawURL, name+"=") {
			found = append(found, name)
		}
	}
	return found
}
