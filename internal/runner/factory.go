// File: internal/runner/factory.go
package runner

import (
	"context"

	"github.com/xkilldash9x/planpilot-cli/internal/browser"
)

// managerFactory adapts the concrete browser manager to the SessionFactory
// interface.
type managerFactory struct {
	manager *browser.Manager
}

// NewBrowserFactory wraps a browser manager as a SessionFactory.
func NewBrowserFactory(m *browser.Manager) SessionFactory {
	return managerFactory{manager: m}
}

func (f managerFactory) NewSession(ctx context.Context) (Session, error) {
	session, err := f.manager.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}
