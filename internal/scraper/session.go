// Package scraper drives the distributor portal through a headless browser.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"mspro-labs/office-cart/internal/config"
	"mspro-labs/office-cart/internal/logging"
	"mspro-labs/office-cart/internal/models"
)

var (
	ErrLoginFailed       = errors.New("login failed")
	ErrStateNotSelected  = errors.New("state could not be selected")
	ErrCenterNotFound    = errors.New("center not found")
	ErrCenterNotSelected = errors.New("center could not be selected")
	ErrCheckoutFailed    = errors.New("checkout failed")
)

// Session is one browser bound to one user's profile. It lives for a single request.
type Session struct {
	cfg      *config.SiteConfig
	ctx      context.Context
	logger   *slog.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	release  func()
}

// Open launches a browser on the user's persistent profile and prepares a stealth page.
// It blocks while another session holds the same profile.
func Open(ctx context.Context, cfg *config.SiteConfig, dataDir, username string) (*Session, error) {
	logger := logging.From(ctx).With("component", "scraper", "username", username)

	release, err := profiles.acquire(ctx, profileName(username))
	if err != nil {
		return nil, fmt.Errorf("waiting for browser profile: %w", err)
	}

	s := &Session{cfg: cfg, ctx: ctx, logger: logger, release: release}
	if err := s.launch(ProfileDir(dataDir, username)); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) launch(profile string) error {
	if err := os.MkdirAll(profile, 0755); err != nil {
		return fmt.Errorf("failed to create profile dir: %w", err)
	}

	// Leakless deadlocks on Windows, see go-rod/rod#853.
	s.launcher = launcher.New().
		Leakless(runtime.GOOS != "windows").
		Headless(s.cfg.Headless).
		NoSandbox(true).
		UserDataDir(profile)
	if bin, ok := launcher.LookPath(); ok {
		s.launcher = s.launcher.Bin(bin)
	}

	s.logger.Debug("Launching browser", "profile", profile)
	u, err := s.launcher.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	s.browser = rod.New().ControlURL(u)
	if err := s.browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	s.page, err = stealth.Page(s.browser)
	if err != nil {
		return fmt.Errorf("failed to create stealth page: %w", err)
	}
	if s.cfg.UserAgent != "" {
		err = s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent})
		if err != nil {
			s.logger.Warn("Failed to set user agent", "error", err)
		}
	}
	return nil
}

// Close shuts the browser down and frees the profile.
// It never calls launcher.Cleanup, which would delete the user data dir.
func (s *Session) Close() {
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && s.launcher != nil {
			s.launcher.Kill()
		}
	} else if s.launcher != nil {
		s.launcher.Kill()
	}
	if s.release != nil {
		s.release()
	}
}

// within runs fn on the page bound to the request context under timeout.
// Elements found inside fn share that deadline, which is released on return.
func (s *Session) within(timeout time.Duration, fn func(p *rod.Page) error) error {
	p := s.page.Context(s.ctx).Timeout(timeout)
	defer p.CancelTimeout()
	return fn(p)
}

func (s *Session) currentURL() (string, error) {
	info, err := s.page.Context(s.ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *Session) open(target string) error {
	return s.within(s.cfg.StepTimeout, func(p *rod.Page) error {
		if err := p.Navigate(target); err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", target, err)
		}
		if err := p.WaitLoad(); err != nil {
			return fmt.Errorf("page %s failed to load: %w", target, err)
		}
		return nil
	})
}

func (s *Session) waitURL(target string, timeout time.Duration) error {
	return s.within(timeout, func(p *rod.Page) error {
		return p.Wait(rod.Eval(`(u) => window.location.href === u`, target))
	})
}

// waitStable waits for the DOM to settle. Pages that never settle are not an error.
func (s *Session) waitStable() {
	_ = s.within(s.cfg.StepTimeout, func(p *rod.Page) error {
		return rod.Try(func() { p.MustWaitStable() })
	})
}

func (s *Session) fill(selector, value string) error {
	return s.within(s.cfg.StepTimeout, func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return fmt.Errorf("element %s: %w", selector, err)
		}
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(value)
	})
}

func (s *Session) click(selector string, xpath bool) error {
	return s.within(s.cfg.StepTimeout, func(p *rod.Page) error {
		var (
			el  *rod.Element
			err error
		)
		if xpath {
			el, err = p.ElementX(selector)
		} else {
			el, err = p.Element(selector)
		}
		if err != nil {
			return fmt.Errorf("element %s: %w", selector, err)
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (s *Session) html() (string, error) {
	var html string
	err := s.within(s.cfg.StepTimeout, func(p *rod.Page) error {
		var err error
		html, err = p.HTML()
		return err
	})
	return html, err
}

// Login signs in unless the profile still holds a valid session.
func (s *Session) Login(username, password string) error {
	sel := s.cfg.Selectors
	loginURL := s.cfg.BaseURL + "login"

	if err := s.open(loginURL); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	current, err := s.currentURL()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if current != loginURL {
		s.logger.Info("Already logged in", "url", current)
		return nil
	}

	if err := s.fill(sel.Email, username); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := s.fill(sel.Password, password); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := s.click(sel.Submit, false); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	s.dismissModals()

	if err := s.waitURL(s.cfg.BaseURL, s.cfg.LoginTimeout); err != nil {
		s.logger.Warn("Login failed", "error", err)
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	s.logger.Info("Logged in")
	return nil
}

// dismissModals closes the address-update and message modals shown after login.
func (s *Session) dismissModals() {
	sel := s.cfg.Selectors
	err := s.within(s.cfg.ModalTimeout, func(p *rod.Page) error {
		return rod.Try(func() { p.MustElement(sel.Modal).MustWaitVisible() })
	})
	if err != nil {
		s.logger.Debug("No modal after login", "error", err)
		return
	}
	if _, err := s.page.Context(s.ctx).Eval(sel.CloseModalsEval); err != nil {
		s.logger.Info("No modal to close", "error", err)
	}
}

// SelectState opens the internal store and picks state in the state selector.
func (s *Session) SelectState(state string) error {
	if err := s.open(s.cfg.BaseURL + "universal/store-internal"); err != nil {
		return fmt.Errorf("%w: %w", ErrStateNotSelected, err)
	}

	err := s.within(s.cfg.StepTimeout, func(p *rod.Page) error {
		el, err := p.Element(s.cfg.Selectors.StateSelect)
		if err != nil {
			return err
		}
		pattern := "^" + regexp.QuoteMeta(state) + "$"
		return el.Select([]string{pattern}, true, rod.SelectorTypeRegex)
	})
	if err != nil {
		s.logger.Warn("Failed to select state", "state", state, "error", err)
		return fmt.Errorf("%w: %w", ErrStateNotSelected, err)
	}

	s.waitStable()
	s.logger.Info("State selected", "state", state)
	return nil
}

// ListCenters returns the centers listed for the selected state.
func (s *Session) ListCenters() ([]models.Center, error) {
	html, err := s.html()
	if err != nil {
		return nil, fmt.Errorf("failed to read centers page: %w", err)
	}
	centers, err := parseCenters(html, s.cfg.Selectors)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Centers found", "count", len(centers))
	return centers, nil
}

// SelectCenter clicks Selecionar on the card titled center.
func (s *Session) SelectCenter(center string) error {
	cards, err := s.page.Context(s.ctx).ElementsX(centerCardXPath(center))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCenterNotSelected, err)
	}
	if cards.Empty() {
		s.logger.Warn("Center not found", "center", center)
		return ErrCenterNotFound
	}

	card := cards.First().Timeout(s.cfg.StepTimeout)
	btn, err := card.ElementX(fmt.Sprintf(`.//button[normalize-space(text())=%s]`, xpathLiteral(s.cfg.Selectors.SelectButton)))
	if err == nil {
		err = btn.Click(proto.InputMouseButtonLeft, 1)
	}
	card.CancelTimeout()
	if err == nil {
		err = s.waitURL(s.cfg.BaseURL+"universal/store-show", s.cfg.StepTimeout)
	}
	if err != nil {
		s.logger.Warn("Failed to select center", "center", center, "error", err)
		return fmt.Errorf("%w: %w", ErrCenterNotSelected, err)
	}
	s.logger.Info("Center selected", "center", center)
	return nil
}

// Search looks product up in the selected center's store. When exactly one
// card matches and quantity is positive, that quantity is added to the cart.
func (s *Session) Search(product string, quantity int) (models.SearchResult, error) {
	q := url.Values{}
	q.Set("search", product)
	q.Set("category", "")
	if err := s.open(s.cfg.BaseURL + "universal/store-show?" + q.Encode()); err != nil {
		return models.SearchResult{}, err
	}

	html, err := s.html()
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("failed to read store page: %w", err)
	}
	products, err := parseProducts(html, s.cfg.Selectors)
	if err != nil {
		return models.SearchResult{}, err
	}

	result, addToCart := planSearch(products, quantity)
	if !addToCart {
		s.logger.Info("Products found", "query", product, "count", len(result.Products))
		return result, nil
	}

	if err := s.fill(s.cfg.Selectors.QuantityInput, strconv.Itoa(quantity)); err != nil {
		return result, fmt.Errorf("failed to set quantity: %w", err)
	}
	if err := s.click(s.cfg.Selectors.AddToCartX, true); err != nil {
		return result, fmt.Errorf("failed to add to cart: %w", err)
	}
	if err := s.within(s.cfg.StepTimeout, func(p *rod.Page) error { return p.WaitLoad() }); err != nil {
		return result, fmt.Errorf("cart update did not finish: %w", err)
	}
	result.AddedToCart = true
	s.logger.Info("Product added to cart", "product", products[0].Name, "quantity", quantity)
	return result, nil
}

// Buy checks the current cart out, paying with the account balance.
func (s *Session) Buy() error {
	sel := s.cfg.Selectors
	if err := s.open(s.cfg.BaseURL + "universal/store-cart"); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	for _, st := range checkoutSteps(sel) {
		if err := s.click(st.selector, st.xpath); err != nil {
			s.logger.Warn("Checkout step failed", "step", st.name, "error", err)
			return fmt.Errorf("%w: %s: %w", ErrCheckoutFailed, st.name, err)
		}
	}
	s.logger.Info("Purchase completed")
	return nil
}

// Products lists every product card on the selected center's store page.
func (s *Session) Products() ([]models.Product, error) {
	storeURL := s.cfg.BaseURL + "universal/store-show"
	if err := s.open(storeURL); err != nil {
		return nil, err
	}
	if err := s.waitURL(storeURL, s.cfg.StepTimeout); err != nil {
		return nil, fmt.Errorf("store page not reached: %w", err)
	}
	if _, err := s.page.Context(s.ctx).Eval(`() => window.scrollTo({ top: document.body.scrollHeight, behavior: 'smooth' })`); err != nil {
		s.logger.Debug("Scroll failed", "error", err)
	}
	s.waitStable()

	html, err := s.html()
	if err != nil {
		return nil, fmt.Errorf("failed to read store page: %w", err)
	}
	products, err := parseProducts(html, s.cfg.Selectors)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Store products found", "count", len(products))
	return products, nil
}
