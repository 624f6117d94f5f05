package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	apperrors "github.com/drewgoldman117/UTR-rating-forecast/pkg/errors"
)

const (
	overlaySelector  = "div[class*='popup__overlay']"
	emailSelector    = "#emailInput, input[name='email'], input[type='email']"
	passwordSelector = "#passwordInput, input[name='password'], input[type='password']"
	signInPattern    = "/^\\s*sign[ -]?in\\s*$/i"
	showAllPattern   = "/^\\s*show all\\s*$/i"
	headerPattern    = "/^\\s*full ratings? history\\s*$/i"

	loginWait   = 8 * time.Second
	overlayWait = 2 * time.Second
	showAllWait = 4 * time.Second
)

// Credentials for the UTR sign-in form. Empty credentials skip the login
// flow entirely, anonymous pages still expose a truncated history.
type Credentials struct {
	Email    string
	Password string
}

// BrowserOptions configures a profile fetch session.
type BrowserOptions struct {
	Headless       bool
	BaseURL        string
	NavTimeout     time.Duration
	StorageState   string // cookie jar to reuse, loaded when the file exists
	SaveStorageTo  string // cookie jar to write after login, empty disables
	DiagnosticsDir string // per-step full-page screenshots, empty disables
}

// FetchResult is the raw outcome of a profile visit.
type FetchResult struct {
	HTML  string
	Title string
}

// Browser drives a headless Chromium session against the rating site.
type Browser struct {
	opts   BrowserOptions
	creds  Credentials
	logger *zap.Logger
}

func NewBrowser(opts BrowserOptions, creds Credentials, logger *zap.Logger) *Browser {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://app.utrsports.net"
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 20 * time.Second
	}
	return &Browser{
		opts:   opts,
		creds:  creds,
		logger: logger,
	}
}

// FetchProfile navigates to a player profile, signs in when the site demands
// it, expands the full history, and returns the final page HTML and title.
func (b *Browser) FetchProfile(ctx context.Context, playerID int64) (*FetchResult, error) {
	controlURL, err := launcher.New().Headless(b.opts.Headless).Launch()
	if err != nil {
		return nil, apperrors.NewScrapeError("failed to launch browser", "launch", playerID, err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, apperrors.NewScrapeError("failed to connect to browser", "connect", playerID, err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, apperrors.NewScrapeError("failed to open page", "page", playerID, err)
	}
	page = page.Context(ctx)

	if err := b.loadStorageState(browser); err != nil {
		b.logger.Warn("Failed to load storage state, continuing without session",
			zap.String("path", b.opts.StorageState),
			zap.Error(err))
	}

	profileURL := fmt.Sprintf("%s/profiles/%d?t=6", b.opts.BaseURL, playerID)

	if err := b.navigate(page, profileURL); err != nil {
		return nil, apperrors.NewScrapeError("failed to load profile", "navigate", playerID, err)
	}
	b.snapshot(page, "01_after_profile_nav")

	if b.creds.Email != "" && b.creds.Password != "" && !b.looksLoggedIn(page) {
		b.clickOverlaySignIn(page)
		b.snapshot(page, "02_after_click_overlay_sign_in")

		b.waitForLoginForm(page)
		b.snapshot(page, "03_login_form_visible")

		if b.login(page) {
			b.snapshot(page, "04_after_login_submit")

			if err := b.navigate(page, profileURL); err != nil {
				return nil, apperrors.NewScrapeError("failed to reload profile after login", "navigate", playerID, err)
			}
			b.snapshot(page, "05_after_reload_profile")

			if b.opts.SaveStorageTo != "" {
				if err := b.saveStorageState(browser); err != nil {
					b.logger.Warn("Failed to save storage state", zap.Error(err))
				} else {
					b.logger.Info("Saved storage state", zap.String("path", b.opts.SaveStorageTo))
				}
			}
		} else {
			b.logger.Warn("Login attempt did not reach a submit", zap.Int64("player_id", playerID))
		}
	}

	b.waitForHistoryHeader(page)
	b.snapshot(page, "06_after_wait_history_header")

	b.clickShowAll(page)
	b.snapshot(page, "07_after_click_show_all")

	html, err := page.HTML()
	if err != nil {
		return nil, apperrors.NewScrapeError("failed to read page HTML", "content", playerID, err)
	}

	title := ""
	if info, err := page.Info(); err == nil {
		title = info.Title
	}

	return &FetchResult{HTML: html, Title: title}, nil
}

func (b *Browser) navigate(page *rod.Page, url string) error {
	if err := page.Timeout(b.opts.NavTimeout).Navigate(url); err != nil {
		return err
	}
	return page.Timeout(b.opts.NavTimeout).WaitLoad()
}

// looksLoggedIn is a heuristic: no overlay and no visible login form.
func (b *Browser) looksLoggedIn(page *rod.Page) bool {
	if has, _, err := page.Has(overlaySelector); err == nil && has {
		return false
	}
	if has, _, err := page.Has("#emailInput, #passwordInput"); err == nil && has {
		return false
	}
	return true
}

// clickOverlaySignIn handles the site's div-based popup overlay carrying a
// Sign In button. Best effort, the overlay is not always present.
func (b *Browser) clickOverlaySignIn(page *rod.Page) bool {
	overlay, err := page.Timeout(overlayWait).Element(overlaySelector)
	if err != nil {
		return false
	}

	signIn, err := overlay.Timeout(overlayWait).ElementR("button", signInPattern)
	if err != nil {
		return false
	}

	if err := signIn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		b.logger.Debug("Overlay sign-in click failed", zap.Error(err))
		return false
	}

	_ = page.Timeout(loginWait).WaitLoad()
	return true
}

func (b *Browser) waitForLoginForm(page *rod.Page) bool {
	_, err := page.Timeout(loginWait).Element(emailSelector + ", " + passwordSelector)
	return err == nil
}

// login fills the credential form and submits it. Tries the page itself
// first, then any iframe hosting the form.
func (b *Browser) login(page *rod.Page) bool {
	if b.fillLoginForm(page) {
		_ = page.Timeout(loginWait).WaitLoad()
		return true
	}

	frames, err := page.Elements("iframe")
	if err != nil {
		return false
	}
	for _, frameEl := range frames {
		frame, err := frameEl.Frame()
		if err != nil {
			continue
		}
		if b.fillLoginForm(frame) {
			_ = page.Timeout(loginWait).WaitLoad()
			return true
		}
	}

	return false
}

func (b *Browser) fillLoginForm(page *rod.Page) bool {
	emailEl, err := page.Timeout(overlayWait).Element(emailSelector)
	if err != nil {
		return false
	}
	passEl, err := page.Timeout(overlayWait).Element(passwordSelector)
	if err != nil {
		return false
	}

	// Typing (not value injection) so the form's change handlers fire
	if err := emailEl.SelectAllText(); err == nil {
		_ = emailEl.Input("")
	}
	if err := emailEl.Input(b.creds.Email); err != nil {
		return false
	}

	if err := passEl.SelectAllText(); err == nil {
		_ = passEl.Input("")
	}
	if err := passEl.Input(b.creds.Password); err != nil {
		return false
	}

	if submit, err := page.Timeout(overlayWait).ElementR("button[type='submit'], button", signInPattern); err == nil {
		if err := submit.Click(proto.InputMouseButtonLeft, 1); err == nil {
			return true
		}
	}

	return passEl.Type(input.Enter) == nil
}

func (b *Browser) waitForHistoryHeader(page *rod.Page) {
	if _, err := page.Timeout(loginWait).ElementR("div, h1, h2, h3, span", headerPattern); err != nil {
		// Looser fallback before giving up, partial renders still parse
		_, _ = page.Timeout(overlayWait).ElementR("div, span", "/full rating/i")
	}
}

// clickShowAll expands the truncated history list when the control exists.
func (b *Browser) clickShowAll(page *rod.Page) bool {
	el, err := page.Timeout(showAllWait).ElementR("button, a", showAllPattern)
	if err != nil {
		return false
	}

	if err := el.ScrollIntoView(); err != nil {
		b.logger.Debug("Show all scroll failed", zap.Error(err))
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		b.logger.Debug("Show all click failed", zap.Error(err))
		return false
	}

	_ = page.Timeout(showAllWait).WaitLoad()
	return true
}

func (b *Browser) loadStorageState(browser *rod.Browser) error {
	if b.opts.StorageState == "" {
		return nil
	}
	data, err := os.ReadFile(b.opts.StorageState)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var cookies []*proto.NetworkCookieParam
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("invalid storage state file: %w", err)
	}
	if len(cookies) == 0 {
		return nil
	}
	return browser.SetCookies(cookies)
}

func (b *Browser) saveStorageState(browser *rod.Browser) error {
	cookies, err := browser.GetCookies()
	if err != nil {
		return err
	}

	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
			Priority: c.Priority,
		})
	}

	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(b.opts.SaveStorageTo); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(b.opts.SaveStorageTo, data, 0600)
}

// snapshot writes a full-page screenshot into the diagnostics directory.
func (b *Browser) snapshot(page *rod.Page, step string) {
	if b.opts.DiagnosticsDir == "" {
		return
	}
	if err := os.MkdirAll(b.opts.DiagnosticsDir, 0755); err != nil {
		b.logger.Debug("Diagnostics dir create failed", zap.Error(err))
		return
	}

	data, err := page.Screenshot(true, nil)
	if err != nil {
		b.logger.Debug("Screenshot failed", zap.String("step", step), zap.Error(err))
		return
	}

	path := filepath.Join(b.opts.DiagnosticsDir, step+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		b.logger.Debug("Screenshot write failed", zap.String("step", step), zap.Error(err))
		return
	}
	b.logger.Debug("Screenshot saved", zap.String("path", path))
}
