package router

import (
	"net/url"
	"strconv"
)

// Query keys used to carry a continuation action across interactive
// redirects. The discriminant always comes first in the encoded string so
// that encoding the same action twice yields the same bytes.
const (
	queryKeyNext = "next"
	queryKeyData = "data"
)

// PostAuthActionKind discriminates the continuation variants.
type PostAuthActionKind string

const (
	// ActionContinueAuthorizationGrant resumes a pending authorization
	// grant identified by its numeric ID.
	ActionContinueAuthorizationGrant PostAuthActionKind = "continue_authorization_grant"

	// ActionChangePassword sends the user to the password change form.
	ActionChangePassword PostAuthActionKind = "change_password"
)

// PostAuthAction tells an interactive endpoint what to do once the user has
// finished the step, e.g. resume the authorization grant they were sent to
// the login page from. Exactly one variant is active; GrantID is only
// meaningful for ActionContinueAuthorizationGrant.
type PostAuthAction struct {
	kind    PostAuthActionKind
	grantID int64
}

// ContinueGrant builds the action that resumes authorization grant grantID.
func ContinueGrant(grantID int64) PostAuthAction {
	return PostAuthAction{kind: ActionContinueAuthorizationGrant, grantID: grantID}
}

// ChangePassword builds the action that sends the user to the password
// change form.
func ChangePassword() PostAuthAction {
	return PostAuthAction{kind: ActionChangePassword}
}

// Kind returns the active variant.
func (a PostAuthAction) Kind() PostAuthActionKind { return a.kind }

// GrantID returns the carried grant ID. The second return value is false for
// variants that do not carry one.
func (a PostAuthAction) GrantID() (int64, bool) {
	if a.kind != ActionContinueAuthorizationGrant {
		return 0, false
	}
	return a.grantID, true
}

// EncodeQuery renders the action as a query string without the leading '?'.
func (a PostAuthAction) EncodeQuery() string { return (&a).encode() }

// GoNext returns the relative URL the browser should be redirected to in
// order to run the action.
func (a PostAuthAction) GoNext() string { return (&a).goNext() }

// DecodePostAuthAction reads a continuation action out of a request's query
// parameters. It returns nil when no action is present or when the
// parameters do not form a valid one; a malformed action is treated the same
// as none at all.
func DecodePostAuthAction(q url.Values) *PostAuthAction {
	switch PostAuthActionKind(q.Get(queryKeyNext)) {
	case ActionContinueAuthorizationGrant:
		grantID, err := strconv.ParseInt(q.Get(queryKeyData), 10, 64)
		if err != nil {
			return nil
		}
		action := ContinueGrant(grantID)
		return &action

	case ActionChangePassword:
		action := ChangePassword()
		return &action

	default:
		return nil
	}
}

// encode is nil-safe so that descriptors without an action can delegate
// unconditionally.
func (a *PostAuthAction) encode() string {
	if a == nil {
		return ""
	}
	switch a.kind {
	case ActionContinueAuthorizationGrant:
		return queryKeyNext + "=" + string(ActionContinueAuthorizationGrant) +
			"&" + queryKeyData + "=" + strconv.FormatInt(a.grantID, 10)
	case ActionChangePassword:
		return queryKeyNext + "=" + string(ActionChangePassword)
	default:
		return ""
	}
}

// goNext is nil-safe: without an action the user lands on the index page.
func (a *PostAuthAction) goNext() string {
	if a == nil {
		return URL(Index)
	}
	switch a.kind {
	case ActionContinueAuthorizationGrant:
		return URL(ContinueAuthorizationGrant{GrantID: a.grantID})
	case ActionChangePassword:
		return URL(AccountPassword)
	default:
		return URL(Index)
	}
}
