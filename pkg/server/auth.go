package server

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"storywoven/pkg/schema"
)

// Authorizer resolves the calling owner from a request.
type Authorizer interface {
	OwnerID(c echo.Context) (string, error)
}

// HeaderAuthorizer trusts an upstream gateway to have authenticated the
// caller and forwarded their identity in a header.
type HeaderAuthorizer struct {
	Header string
}

func (a HeaderAuthorizer) OwnerID(c echo.Context) (string, error) {
	h := a.Header
	if h == "" {
		h = "X-Owner-Id"
	}
	owner := c.Request().Header.Get(h)
	if owner == "" {
		return "", fmt.Errorf("%w: missing %s header", schema.ErrUnauthorized, h)
	}
	return owner, nil
}

// authorizeProject rejects cross-owner access. Projects created before
// ownership tracking carry no owner and stay reachable.
func authorizeProject(p *schema.Project, owner string) error {
	if p.OwnerID == "" || p.OwnerID == owner {
		return nil
	}
	return schema.ErrUnauthorized
}
