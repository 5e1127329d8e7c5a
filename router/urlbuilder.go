package router

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// URLBuilder renders absolute URLs for routes against the public base URL
// the service is reachable at. The base is normalized once at construction
// so that joining never produces double slashes.
type URLBuilder struct {
	prefix string
	issuer string
}

// NewURLBuilder validates and normalizes the public base URL. The base must
// be an absolute http(s) URL; a path prefix is allowed, trailing slashes,
// query and fragment are dropped.
func NewURLBuilder(publicBase string) (*URLBuilder, error) {
	u, err := url.Parse(publicBase)
	if err != nil {
		return nil, errors.Wrap(err, "[NewURLBuilder] parsing public base URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("[NewURLBuilder] public base URL %q must use http or https", publicBase)
	}
	if u.Host == "" {
		return nil, errors.Errorf("[NewURLBuilder] public base URL %q has no host", publicBase)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""

	return &URLBuilder{prefix: u.String(), issuer: u.String()}, nil
}

// RouteURL returns the absolute URL for the given route.
func (b *URLBuilder) RouteURL(r Route) string {
	return b.prefix + URL(r)
}

// Issuer returns the OIDC issuer identifier, which is the public base URL.
func (b *URLBuilder) Issuer() string { return b.issuer }
