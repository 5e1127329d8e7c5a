// Package server hosts the browser facing pages and the OAuth 2.0 endpoints
// of the identity provider on a single ServeMux. Interactive handlers render
// HTML and redirect between each other through the typed route descriptors in
// the router package; API handlers speak JSON.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/jrsteele09/go-ident-server/clients"
	"github.com/jrsteele09/go-ident-server/graphql"
	"github.com/jrsteele09/go-ident-server/internal/config"
	"github.com/jrsteele09/go-ident-server/mailer"
	"github.com/jrsteele09/go-ident-server/oauth2"
	"github.com/jrsteele09/go-ident-server/router"
	"github.com/jrsteele09/go-ident-server/session"
	"github.com/jrsteele09/go-ident-server/token"
	"github.com/jrsteele09/go-ident-server/users"
)

// Pinger is the corner of *sql.DB the healthcheck needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Repos bundles the persistence boundaries the handlers work against.
// DB may be nil, which disables the database probe on the healthcheck.
type Repos struct {
	Users    users.Repo
	Emails   users.EmailRepo
	Sessions session.Store
	Clients  clients.Repo
	Grants   oauth2.GrantRepo
	Mail     mailer.Queue
	DB       Pinger
}

type Server struct {
	env        string // Environment (e.g. "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	repos      Repos
	issuer     *token.Issuer
	keys       token.KeySource
	urls       *router.URLBuilder
	freshness  session.Policy
	cookies    *sessionCookies
	gql        *graphql.Schema
	serverName string // host part of the issuer, used for compat user IDs
}

func New(cfg config.Config, repos Repos, issuer *token.Issuer, keys token.KeySource) (*Server, error) {
	urls, err := router.NewURLBuilder(cfg.GetPublicBaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] public base URL")
	}

	cookies, err := newSessionCookies(cfg.GetSessionSecret())
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] session cookies")
	}

	issuerURL, err := url.Parse(urls.Issuer())
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] issuer URL")
	}

	gqlSchema, err := graphql.New(repos.Sessions)
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] graphql schema")
	}

	s := &Server{
		mux:    http.NewServeMux(),
		config: cfg,
		repos:  repos,
		issuer: issuer,
		keys:   keys,
		urls:   urls,
		freshness: session.Policy{
			PasswordChangeMaxAge: cfg.GetPasswordChangeMaxAge(),
			ConsentMaxAge:        cfg.GetConsentMaxAge(),
		},
		cookies:    cookies,
		gql:        gqlSchema,
		serverName: issuerURL.Host,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + resetColor
	} else {
		displayMethod = gray + paddedMethod + resetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}

const (
	green      = "\033[32m"
	blue       = "\033[34m"
	cyan       = "\033[36m"
	yellow     = "\033[33m"
	magenta    = "\033[35m"
	gray       = "\033[90m"
	resetColor = "\033[0m"
)

var methodColors = map[string]string{
	"GET":    green,
	"POST":   blue,
	"PUT":    cyan,
	"DELETE": yellow,
	"PATCH":  magenta,
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
