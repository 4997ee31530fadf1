package auth

import (
	"context"
	"testing"
	"time"

	"github.com/hansduf/WA-Integrasi-sub000/internal/errors"
)

func TestStaticTokenAuthenticator(t *testing.T) {
	a := NewStaticTokenAuthenticator()
	a.RegisterToken("secret-token", &User{ID: "u1", Roles: []string{"admin"}})
	ctx := context.Background()

	user, err := a.ValidateToken(ctx, "secret-token")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if user.ID != "u1" || !user.HasRole("admin") {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := a.ValidateToken(ctx, ""); !errors.IsAuthFailed(err) {
		t.Fatalf("empty token: %v", err)
	}
	if _, err := a.ValidateToken(ctx, "wrong"); !errors.IsAuthFailed(err) {
		t.Fatalf("unknown token: %v", err)
	}
}

func TestStaticTokenAuthenticator_ExpiredToken(t *testing.T) {
	a := NewStaticTokenAuthenticator()
	a.RegisterToken("stale", &User{
		ID:        "u1",
		ExpiresAt: time.Now().Add(-time.Minute),
	})

	_, err := a.ValidateToken(context.Background(), "stale")
	if !errors.IsAuthFailed(err) {
		t.Fatalf("expected auth failure for expired token, got %v", err)
	}
}

// TestStaticTokenAuthenticator_TokenExpiry covers a token that lapses
// before the operator account does.
func TestStaticTokenAuthenticator_TokenExpiry(t *testing.T) {
	a := NewStaticTokenAuthenticator()
	operator := &User{ID: "u1", Roles: []string{"operator"}}
	a.RegisterTokenWithExpiry("rotating", operator, time.Now().Add(-time.Minute))
	a.RegisterToken("permanent", operator)
	ctx := context.Background()

	if _, err := a.ValidateToken(ctx, "rotating"); !errors.IsAuthFailed(err) {
		t.Fatalf("expected auth failure for lapsed token, got %v", err)
	}
	if _, err := a.ValidateToken(ctx, "permanent"); err != nil {
		t.Fatalf("account-lifetime token rejected: %v", err)
	}
}

func TestStaticTokenAuthenticator_TrimsWhitespace(t *testing.T) {
	a := NewStaticTokenAuthenticator()
	a.RegisterToken("padded-token", &User{ID: "u1"})

	user, err := a.ValidateToken(context.Background(), "  padded-token\n")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if user.ID != "u1" {
		t.Fatalf("unexpected user: %+v", user)
	}
}

func TestUser_IsExpired(t *testing.T) {
	forever := &User{}
	if forever.IsExpired() {
		t.Fatal("zero expiry should never expire")
	}
	expired := &User{ExpiresAt: time.Now().Add(-time.Second)}
	if !expired.IsExpired() {
		t.Fatal("past expiry should be expired")
	}
}

func TestUserContext_RoundTrip(t *testing.T) {
	if UserFromContext(context.Background()) != nil {
		t.Fatal("empty context should carry no user")
	}
	u := &User{ID: "u1"}
	ctx := ContextWithUser(context.Background(), u)
	if got := UserFromContext(ctx); got != u {
		t.Fatalf("user lost in context: %+v", got)
	}
}

// TestAuthorization_DenyByDefault verifies absence of a grant is denial.
func TestAuthorization_DenyByDefault(t *testing.T) {
	svc := NewAuthorizationService()
	user := &User{ID: "u1", Roles: []string{"viewer"}}
	ctx := context.Background()

	if err := svc.Authorize(ctx, user, ActionQuery); !errors.IsAccessDenied(err) {
		t.Fatalf("expected denial without grant, got %v", err)
	}

	svc.GrantAction("viewer", ActionQuery)
	if err := svc.Authorize(ctx, user, ActionQuery); err != nil {
		t.Fatalf("granted action denied: %v", err)
	}
	if err := svc.Authorize(ctx, user, ActionManageTriggers); !errors.IsAccessDenied(err) {
		t.Fatalf("ungranted action allowed: %v", err)
	}

	if err := svc.Authorize(ctx, nil, ActionQuery); !errors.IsAccessDenied(err) {
		t.Fatalf("nil user allowed: %v", err)
	}
}

func TestAuthorization_RevokeAction(t *testing.T) {
	svc := NewAuthorizationService()
	svc.GrantAction("operator", ActionResolve)
	user := &User{Roles: []string{"operator"}}

	if !svc.HasAccess(user, ActionResolve) {
		t.Fatal("grant not applied")
	}
	svc.RevokeAction("operator", ActionResolve)
	if svc.HasAccess(user, ActionResolve) {
		t.Fatal("revoked grant still effective")
	}
}

func TestAuthorization_GrantAll(t *testing.T) {
	svc := NewAuthorizationService()
	svc.GrantAll("admin")
	user := &User{Roles: []string{"admin"}}

	for _, action := range []Action{ActionManageDataSources, ActionManageTriggers, ActionQuery, ActionResolve} {
		if !svc.HasAccess(user, action) {
			t.Fatalf("admin missing %s", action)
		}
	}
	if got := svc.GetGrants("admin"); len(got) != 4 {
		t.Fatalf("expected 4 grants, got %v", got)
	}
}

func TestAuthorization_AnyRoleSuffices(t *testing.T) {
	svc := NewAuthorizationService()
	svc.GrantAction("operator", ActionQuery)
	user := &User{Roles: []string{"viewer", "operator"}}

	if !svc.HasAccess(user, ActionQuery) {
		t.Fatal("second role's grant ignored")
	}
}
