package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Venallanaj/QA-Task/internal/session"
)

// localStorageSeed writes each origin's entries the first time a document of
// that origin loads in the tab. The sessionStorage marker keeps later loads
// from overwriting values the application changed.
const localStorageSeed = `(function(seed) {
  try {
    var items = seed[location.origin];
    if (!items || sessionStorage.getItem('__shiftcheck_seeded')) return;
    for (var k in items) localStorage.setItem(k, items[k]);
    sessionStorage.setItem('__shiftcheck_seeded', '1');
  } catch (e) {}
})(%s);`

const localStorageSnapshot = `(function() {
  var items = [];
  try {
    for (var i = 0; i < localStorage.length; i++) {
      var k = localStorage.key(i);
      items.push({name: k, value: localStorage.getItem(k)});
    }
  } catch (e) {}
  return {origin: location.origin, items: items};
})()`

func storageSeedScript(st *session.State) (string, bool) {
	seed := make(map[string]map[string]string)
	for _, o := range st.Origins {
		if len(o.LocalStorage) == 0 {
			continue
		}
		m := make(map[string]string, len(o.LocalStorage))
		for _, it := range o.LocalStorage {
			m[it.Name] = it.Value
		}
		seed[strings.TrimSuffix(o.Origin, "/")] = m
	}
	if len(seed) == 0 {
		return "", false
	}
	data, _ := json.Marshal(seed)
	return fmt.Sprintf(localStorageSeed, data), true
}

func cookieParams(cookies []session.Cookie) []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			p.SameSite = network.CookieSameSite(c.SameSite)
		}
		if !c.Session() {
			sec, frac := math.Modf(c.Expires)
			exp := cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
			p.Expires = &exp
		}
		out = append(out, p)
	}
	return out
}

func fromNetworkCookies(cookies []*network.Cookie) []session.Cookie {
	out := make([]session.Cookie, 0, len(cookies))
	for _, c := range cookies {
		exp := c.Expires
		if c.Session {
			exp = -1
		}
		out = append(out, session.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  exp,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out
}

// applyState seeds cookies and local storage into a fresh browsing context.
func applyState(st *session.State) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if st.Empty() {
			return nil
		}
		if len(st.Cookies) > 0 {
			if err := network.SetCookies(cookieParams(st.Cookies)).Do(ctx); err != nil {
				return fmt.Errorf("set cookies: %w", err)
			}
		}
		if script, ok := storageSeedScript(st); ok {
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("seed local storage: %w", err)
			}
		}
		return nil
	})
}

// captureState reads the cookies visible to the current document and the
// base URL, plus the current origin's local storage.
func captureState(ctx context.Context, urls []string) (*session.State, error) {
	var cookies []*network.Cookie
	var snap struct {
		Origin string                `json:"origin"`
		Items  []session.StorageItem `json:"items"`
	}
	err := chromedp.Run(ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = network.GetCookies().WithURLs(urls).Do(ctx)
			return err
		}),
		chromedp.Evaluate(localStorageSnapshot, &snap),
	)
	if err != nil {
		return nil, fmt.Errorf("capture storage state: %w", err)
	}
	st := &session.State{
		Cookies: fromNetworkCookies(cookies),
		Origins: []session.Origin{},
	}
	if snap.Origin != "" && snap.Origin != "null" {
		items := snap.Items
		if items == nil {
			items = []session.StorageItem{}
		}
		st.Origins = append(st.Origins, session.Origin{Origin: snap.Origin, LocalStorage: items})
	}
	return st, nil
}
