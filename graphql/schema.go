// Package graphql exposes a read-only query surface over browser sessions
// and their authentication events. Queries run as a signed-in user and only
// see that user's sessions; foreign IDs resolve to null.
package graphql

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gql "github.com/graphql-go/graphql"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-ident-server/session"
	"github.com/jrsteele09/go-ident-server/users"
)

// Request is the standard GraphQL HTTP request body.
type Request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Schema executes session queries against the session store.
type Schema struct {
	schema gql.Schema
}

type requesterKey struct{}

func requesterID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(requesterKey{}).(int64)
	return id, ok
}

// New builds the schema. Resolvers open their own units of work and cancel
// them after reading.
func New(store session.Store) (*Schema, error) {
	userType := gql.NewObject(gql.ObjectConfig{
		Name: "User",
		Fields: gql.Fields{
			"id": &gql.Field{
				Type: gql.NewNonNull(gql.ID),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return formatID(p.Source.(users.User).ID), nil
				},
			},
			"username": &gql.Field{
				Type: gql.NewNonNull(gql.String),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return p.Source.(users.User).Username, nil
				},
			},
		},
	})

	authenticationType := gql.NewObject(gql.ObjectConfig{
		Name: "Authentication",
		Fields: gql.Fields{
			"id": &gql.Field{
				Type: gql.NewNonNull(gql.ID),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return formatID(p.Source.(*session.Authentication).ID), nil
				},
			},
			"createdAt": &gql.Field{
				Type: gql.NewNonNull(gql.DateTime),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return p.Source.(*session.Authentication).CreatedAt, nil
				},
			},
		},
	})

	stateType := gql.NewEnum(gql.EnumConfig{
		Name: "SessionState",
		Values: gql.EnumValueConfigMap{
			"ACTIVE":   &gql.EnumValueConfig{Value: session.StateActive},
			"FINISHED": &gql.EnumValueConfig{Value: session.StateFinished},
		},
	})

	sessionType := gql.NewObject(gql.ObjectConfig{
		Name: "BrowserSession",
		Fields: gql.Fields{
			"id": &gql.Field{
				Type: gql.NewNonNull(gql.ID),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return formatID(p.Source.(*session.BrowserSession).ID), nil
				},
			},
			"user": &gql.Field{
				Type: gql.NewNonNull(userType),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return p.Source.(*session.BrowserSession).User, nil
				},
			},
			"lastAuthentication": &gql.Field{
				Type: authenticationType,
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					s := p.Source.(*session.BrowserSession)
					repo, err := store.Begin(p.Context)
					if err != nil {
						return nil, err
					}
					defer func() { _ = repo.Cancel(p.Context) }()

					last, err := repo.LastAuthentication(p.Context, s.ID)
					if err != nil {
						return nil, err
					}
					if last == nil {
						return nil, nil
					}
					return last, nil
				},
			},
			"createdAt": &gql.Field{
				Type: gql.NewNonNull(gql.DateTime),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return p.Source.(*session.BrowserSession).CreatedAt, nil
				},
			},
			"finishedAt": &gql.Field{
				Type: gql.DateTime,
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return nullableTime(p.Source.(*session.BrowserSession).FinishedAt)
				},
			},
			"state": &gql.Field{
				Type: gql.NewNonNull(stateType),
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return p.Source.(*session.BrowserSession).State(), nil
				},
			},
			"userAgent": &gql.Field{
				Type: gql.String,
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					s := p.Source.(*session.BrowserSession)
					if s.UserAgent == "" {
						return nil, nil
					}
					return s.UserAgent, nil
				},
			},
			"lastActiveIp": &gql.Field{
				Type: gql.String,
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					s := p.Source.(*session.BrowserSession)
					if !s.LastActiveIP.IsValid() {
						return nil, nil
					}
					return s.LastActiveIP.String(), nil
				},
			},
			"lastActiveAt": &gql.Field{
				Type: gql.DateTime,
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					return nullableTime(p.Source.(*session.BrowserSession).LastActiveAt)
				},
			},
		},
	})

	queryType := gql.NewObject(gql.ObjectConfig{
		Name: "Query",
		Fields: gql.Fields{
			"session": &gql.Field{
				Type: sessionType,
				Args: gql.FieldConfigArgument{
					"id": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
				},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					requester, ok := requesterID(p.Context)
					if !ok {
						return nil, nil
					}
					id, err := parseID(p.Args["id"])
					if err != nil {
						return nil, err
					}

					repo, err := store.Begin(p.Context)
					if err != nil {
						return nil, err
					}
					defer func() { _ = repo.Cancel(p.Context) }()

					s, err := repo.Get(p.Context, id)
					if errors.Is(err, session.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					// Foreign sessions look exactly like missing ones.
					if s.User.ID != requester {
						return nil, nil
					}
					return s, nil
				},
			},
			"sessionsForUser": &gql.Field{
				Type: gql.NewList(gql.NewNonNull(sessionType)),
				Args: gql.FieldConfigArgument{
					"userId": &gql.ArgumentConfig{Type: gql.NewNonNull(gql.ID)},
				},
				Resolve: func(p gql.ResolveParams) (interface{}, error) {
					requester, ok := requesterID(p.Context)
					if !ok {
						return nil, nil
					}
					userID, err := parseID(p.Args["userId"])
					if err != nil {
						return nil, err
					}
					if userID != requester {
						return nil, nil
					}

					repo, err := store.Begin(p.Context)
					if err != nil {
						return nil, err
					}
					defer func() { _ = repo.Cancel(p.Context) }()

					return repo.ListForUser(p.Context, userID)
				},
			},
		},
	})

	schema, err := gql.NewSchema(gql.SchemaConfig{Query: queryType})
	if err != nil {
		return nil, errors.Wrap(err, "[graphql.New] building schema")
	}
	return &Schema{schema: schema}, nil
}

// Execute runs one request as the given user. The result is ready for JSON
// encoding; resolver failures surface in its errors list.
func (s *Schema) Execute(ctx context.Context, requester int64, req Request) *gql.Result {
	return gql.Do(gql.Params{
		Schema:         s.schema,
		RequestString:  req.Query,
		OperationName:  req.OperationName,
		VariableValues: req.Variables,
		Context:        context.WithValue(ctx, requesterKey{}, requester),
	})
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(raw interface{}) (int64, error) {
	s, ok := raw.(string)
	if !ok {
		return 0, fmt.Errorf("malformed id %v", raw)
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed id %q", s)
	}
	return id, nil
}

func nullableTime(t *time.Time) (interface{}, error) {
	if t == nil {
		return nil, nil
	}
	return *t, nil
}
