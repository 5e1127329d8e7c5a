package config

import "strings"

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

var _ CorsConfig = (*mainConfig)(nil)

type AllowedOrigins map[string]struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	origins := make([]string, 0, len(a))
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

func (c *mainConfig) GetAllowedOrigins() AllowedOrigins {
	origins := make(AllowedOrigins, len(c.vars.AllowedOrigins))
	for _, o := range c.vars.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			origins[o] = struct{}{}
		}
	}
	return origins
}

func (c *mainConfig) GetAllowedMethods() string {
	return c.vars.AllowedMethods
}

func (c *mainConfig) GetAllowedHeaders() string {
	return c.vars.AllowedHeaders
}
