// Package workflow composes portal steps into the operations the API and CLI
// expose. Every operation runs in its own browser session; failures collapse
// to empty results or false here, after being logged and counted.
package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mspro-labs/office-cart/internal/config"
	"mspro-labs/office-cart/internal/db"
	"mspro-labs/office-cart/internal/logging"
	"mspro-labs/office-cart/internal/metrics"
	"mspro-labs/office-cart/internal/models"
	"mspro-labs/office-cart/internal/scraper"
)

var (
	// ErrCenterNotFound is returned when the center could not be reached:
	// login, state or center selection failed. Use errors.Is; the cause is wrapped.
	ErrCenterNotFound = scraper.ErrCenterNotFound
	// ErrPortalUnavailable is returned when no browser session could be opened.
	ErrPortalUnavailable = errors.New("portal session unavailable")
)

// Session is a browser on one user's profile, used for a single operation.
type Session interface {
	Login(username, password string) error
	SelectState(state string) error
	ListCenters() ([]models.Center, error)
	SelectCenter(center string) error
	Search(product string, quantity int) (models.SearchResult, error)
	Buy() error
	Products() ([]models.Product, error)
	Close()
}

// Portal opens sessions.
type Portal interface {
	Open(ctx context.Context, username string) (Session, error)
}

var _ Session = (*scraper.Session)(nil)

// BrowserPortal opens real go-rod sessions.
type BrowserPortal struct {
	Site    *config.SiteConfig
	DataDir string
}

func (p *BrowserPortal) Open(ctx context.Context, username string) (Session, error) {
	s, err := scraper.Open(ctx, p.Site, p.DataDir, username)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Service runs portal operations. DB is optional; when set, scraped
// products and purchase outcomes are stored.
type Service struct {
	Portal Portal
	DB     *sql.DB
}

// New returns a Service backed by portal and an optional database.
func New(portal Portal, database *sql.DB) *Service {
	return &Service{Portal: portal, DB: database}
}

// run opens a session, logs in and hands it to fn.
func (s *Service) run(ctx context.Context, op string, creds models.Credentials, fn func(Session) error) (err error) {
	started := time.Now()
	ctx = logging.WithAttrs(ctx, "operation", op, "username", creds.Username)
	logger := logging.From(ctx)

	defer func() {
		metrics.Observe(op, err == nil, started)
		if err != nil {
			logger.Warn("Operation failed", "error", err, "elapsed", time.Since(started))
		} else {
			logger.Info("Operation finished", "elapsed", time.Since(started))
		}
	}()

	session, err := s.Portal.Open(ctx, creds.Username)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPortalUnavailable, err)
	}
	defer session.Close()

	if err := session.Login(creds.Username, creds.Password); err != nil {
		return errBeforeSelection{err}
	}
	return fn(session)
}

// Centers lists the centers available in state. Any failure yields an empty list.
func (s *Service) Centers(ctx context.Context, creds models.Credentials, state string) []string {
	names := []string{}
	_ = s.run(ctx, "centers", creds, func(sess Session) error {
		if err := sess.SelectState(state); err != nil {
			return err
		}
		centers, err := sess.ListCenters()
		if err != nil {
			return err
		}
		for _, c := range centers {
			names = append(names, c.Name)
		}
		return nil
	})
	return names
}

// SelectCenter reports whether center could be selected in state.
func (s *Service) SelectCenter(ctx context.Context, creds models.Credentials, state, center string) bool {
	err := s.run(ctx, "select_center", creds, func(sess Session) error {
		return selectCenter(sess, state, center)
	})
	return err == nil
}

// Search selects the center and searches it for product, adding quantity to
// the cart when exactly one product matches. A failure before the center is
// selected returns ErrCenterNotFound; later failures yield an empty result.
func (s *Service) Search(ctx context.Context, creds models.Credentials, state, center, product string, quantity int) (models.SearchResult, error) {
	result := models.SearchResult{Products: []models.Product{}}
	err := s.run(ctx, "search", creds, func(sess Session) error {
		if err := selectCenter(sess, state, center); err != nil {
			return err
		}
		found, err := sess.Search(product, quantity)
		if found.Products != nil {
			result = found
		}
		return err
	})
	if err := selectionError(err); err != nil {
		return result, err
	}
	if len(result.Products) > 0 {
		s.saveProducts(ctx, center, result.Products, false)
	}
	return result, nil
}

// Buy checks out the user's cart and reports success.
func (s *Service) Buy(ctx context.Context, creds models.Credentials) bool {
	err := s.run(ctx, "buy", creds, func(sess Session) error {
		return sess.Buy()
	})
	ok := err == nil
	if s.DB != nil {
		if err := db.RecordPurchase(s.DB, creds.Username, ok); err != nil {
			logging.From(ctx).Warn("Failed to record purchase", "error", err)
		}
	}
	return ok
}

// Products lists every product in the center's store. Failures are mapped
// like Search's.
func (s *Service) Products(ctx context.Context, creds models.Credentials, state, center string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.run(ctx, "products", creds, func(sess Session) error {
		if err := selectCenter(sess, state, center); err != nil {
			return err
		}
		found, err := sess.Products()
		if err != nil {
			return err
		}
		products = append(products, found...)
		return nil
	})
	if err := selectionError(err); err != nil {
		return products, err
	}
	if err == nil {
		s.saveProducts(ctx, center, products, true)
	}
	return products, nil
}

func selectCenter(sess Session, state, center string) error {
	if err := sess.SelectState(state); err != nil {
		return errBeforeSelection{err}
	}
	if err := sess.SelectCenter(center); err != nil {
		return errBeforeSelection{err}
	}
	return nil
}

// errBeforeSelection marks a failure that happened before the center was selected.
type errBeforeSelection struct{ err error }

func (e errBeforeSelection) Error() string { return e.err.Error() }
func (e errBeforeSelection) Unwrap() error { return e.err }

// selectionError keeps the errors callers act on: an unavailable portal and
// anything that stopped the center from being selected. Other errors are dropped.
func selectionError(err error) error {
	var before errBeforeSelection
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrPortalUnavailable):
		return err
	case errors.Is(err, ErrCenterNotFound):
		return err
	case errors.As(err, &before):
		return fmt.Errorf("%w: %w", ErrCenterNotFound, before.err)
	}
	return nil
}

// saveProducts stores scraped products. A full listing first retires the
// center's products that are no longer shown.
func (s *Service) saveProducts(ctx context.Context, center string, products []models.Product, full bool) {
	if s.DB == nil {
		return
	}
	logger := logging.From(ctx)
	if full {
		if err := db.MarkCenterInactive(s.DB, center); err != nil {
			logger.Warn("Failed to retire old products", "center", center, "error", err)
			return
		}
	}
	n, err := db.SaveProducts(s.DB, center, products)
	if err != nil {
		logger.Warn("Failed to save products", "center", center, "error", err)
		return
	}
	logger.Debug("Catalog updated", "center", center, "rows", n)
}
