package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ErlanBelekov/sessionauth/internal/domain"
	"github.com/ErlanBelekov/sessionauth/internal/transport/http/handler"
	"github.com/ErlanBelekov/sessionauth/internal/usecase"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAuth implements every handler's unexported usecase interface via method matching.
type fakeAuth struct {
	signIn               func(ctx context.Context, email, password string, meta domain.SignInMeta) (*usecase.SignInResult, error)
	signOut              func(ctx context.Context, p *domain.Principal) error
	signOutEverywhere    func(ctx context.Context, p *domain.Principal) (int64, error)
	listSessions         func(ctx context.Context, p *domain.Principal) ([]*domain.Session, error)
	revokeSession        func(ctx context.Context, p *domain.Principal, sessionID string) error
	signUp               func(ctx context.Context, in usecase.SignUpInput) (*domain.User, error)
	profile              func(ctx context.Context, userID string) (*domain.User, error)
	updateProfile        func(ctx context.Context, p *domain.Principal, in usecase.UpdateProfileInput) (*domain.User, error)
	deleteAccount        func(ctx context.Context, p *domain.Principal, currentPassword string) error
	requestPasswordReset func(ctx context.Context, email string) error
	resetPassword        func(ctx context.Context, in usecase.ResetPasswordInput) error
	confirm              func(ctx context.Context, rawToken string) (*domain.User, error)
	resendConfirmation   func(ctx context.Context, email string) error
	requestUnlock        func(ctx context.Context, email string) error
	unlock               func(ctx context.Context, rawToken string) error
	invite               func(ctx context.Context, p *domain.Principal, in usecase.InviteInput) (*domain.User, error)
	acceptInvitation     func(ctx context.Context, in usecase.AcceptInvitationInput, meta domain.SignInMeta) (*usecase.SignInResult, error)
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string, meta domain.SignInMeta) (*usecase.SignInResult, error) {
	return f.signIn(ctx, email, password, meta)
}

func (f *fakeAuth) SignOut(ctx context.Context, p *domain.Principal) error { return f.signOut(ctx, p) }

func (f *fakeAuth) SignOutEverywhere(ctx context.Context, p *domain.Principal) (int64, error) {
	return f.signOutEverywhere(ctx, p)
}

func (f *fakeAuth) ListSessions(ctx context.Context, p *domain.Principal) ([]*domain.Session, error) {
	return f.listSessions(ctx, p)
}

func (f *fakeAuth) RevokeSession(ctx context.Context, p *domain.Principal, sessionID string) error {
	return f.revokeSession(ctx, p, sessionID)
}

func (f *fakeAuth) SignUp(ctx context.Context, in usecase.SignUpInput) (*domain.User, error) {
	return f.signUp(ctx, in)
}

func (f *fakeAuth) Profile(ctx context.Context, userID string) (*domain.User, error) {
	return f.profile(ctx, userID)
}

func (f *fakeAuth) UpdateProfile(ctx context.Context, p *domain.Principal, in usecase.UpdateProfileInput) (*domain.User, error) {
	return f.updateProfile(ctx, p, in)
}

func (f *fakeAuth) DeleteAccount(ctx context.Context, p *domain.Principal, currentPassword string) error {
	return f.deleteAccount(ctx, p, currentPassword)
}

func (f *fakeAuth) RequestPasswordReset(ctx context.Context, email string) error {
	return f.requestPasswordReset(ctx, email)
}

func (f *fakeAuth) ResetPassword(ctx context.Context, in usecase.ResetPasswordInput) error {
	return f.resetPassword(ctx, in)
}

func (f *fakeAuth) Confirm(ctx context.Context, rawToken string) (*domain.User, error) {
	return f.confirm(ctx, rawToken)
}

func (f *fakeAuth) ResendConfirmation(ctx context.Context, email string) error {
	return f.resendConfirmation(ctx, email)
}

func (f *fakeAuth) RequestUnlock(ctx context.Context, email string) error {
	return f.requestUnlock(ctx, email)
}

func (f *fakeAuth) Unlock(ctx context.Context, rawToken string) error { return f.unlock(ctx, rawToken) }

func (f *fakeAuth) Invite(ctx context.Context, p *domain.Principal, in usecase.InviteInput) (*domain.User, error) {
	return f.invite(ctx, p, in)
}

func (f *fakeAuth) AcceptInvitation(ctx context.Context, in usecase.AcceptInvitationInput, meta domain.SignInMeta) (*usecase.SignInResult, error) {
	return f.acceptInvitation(ctx, in, meta)
}

var testPrincipal = &domain.Principal{
	User:    &domain.User{ID: "user-1", Email: "ann@example.com", Name: "Ann"},
	Session: &domain.Session{ID: "s-1"},
}

// newTestEngine mounts the handlers without the real Auth middleware; a stub
// sets the principal the way Auth would.
func newTestEngine(uc *fakeAuth) *gin.Engine {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	sessions := handler.NewSessionHandler(uc, logger)
	accounts := handler.NewAccountHandler(uc, logger)
	recovery := handler.NewRecoveryHandler(uc, logger)
	invitations := handler.NewInvitationHandler(uc, logger)

	authed := func(c *gin.Context) {
		c.Set("principal", testPrincipal)
		c.Next()
	}

	r := gin.New()
	r.POST("/auth/sign_in", sessions.SignIn)
	r.DELETE("/auth/sign_out", authed, sessions.SignOut)
	r.GET("/auth/sessions", authed, sessions.List)
	r.DELETE("/auth/sessions", authed, sessions.SignOutEverywhere)
	r.DELETE("/auth/sessions/:id", authed, sessions.Revoke)
	r.POST("/auth/registration", accounts.SignUp)
	r.GET("/auth/profile", authed, accounts.Profile)
	r.PATCH("/auth/profile", authed, accounts.UpdateProfile)
	r.DELETE("/auth/profile", authed, accounts.DeleteAccount)
	r.POST("/auth/password", recovery.RequestPasswordReset)
	r.PUT("/auth/password", recovery.ResetPassword)
	r.POST("/auth/confirmation", recovery.ResendConfirmation)
	r.GET("/auth/confirmation", recovery.Confirm)
	r.POST("/auth/unlock", recovery.RequestUnlock)
	r.GET("/auth/unlock", recovery.Unlock)
	r.POST("/auth/invitation", authed, invitations.Invite)
	r.PUT("/auth/invitation", invitations.Accept)
	return r
}

func do(uc *fakeAuth, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	newTestEngine(uc).ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return out
}

// ---- sign in ----

func TestSignIn_Success_Returns201WithToken(t *testing.T) {
	expires := time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC)
	uc := &fakeAuth{signIn: func(_ context.Context, email, password string, meta domain.SignInMeta) (*usecase.SignInResult, error) {
		if email != "ann@example.com" || password != "secret123" {
			t.Errorf("got credentials %q/%q", email, password)
		}
		if meta.UserAgent != "test-agent" {
			t.Errorf("user agent = %q", meta.UserAgent)
		}
		return &usecase.SignInResult{Token: "jwt", ExpiresAt: expires, User: testPrincipal.User, Session: testPrincipal.Session}, nil
	}}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/sign_in", strings.NewReader(`{"email":"ann@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "test-agent")
	newTestEngine(uc).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", w.Code, w.Body.String())
	}
	if w.Header().Get("Authorization") != "Bearer jwt" {
		t.Errorf("Authorization header = %q", w.Header().Get("Authorization"))
	}
	body := decode(t, w)
	if body["token"] != "jwt" || body["expires_at"] != "2025-03-01T13:00:00Z" {
		t.Errorf("body = %v", body)
	}
	if user, _ := body["user"].(map[string]any); user["id"] != "user-1" {
		t.Errorf("user = %v", body["user"])
	}
}

func TestSignIn_MalformedJSON_Returns400(t *testing.T) {
	w := do(&fakeAuth{}, http.MethodPost, "/auth/sign_in", `{bad json}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSignIn_MissingFields_Returns422PerField(t *testing.T) {
	w := do(&fakeAuth{}, http.MethodPost, "/auth/sign_in", `{"email":""}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	errs, _ := decode(t, w)["errors"].(map[string]any)
	for _, field := range []string{"email", "password"} {
		msgs, _ := errs[field].([]any)
		if len(msgs) != 1 || msgs[0] != "can't be blank" {
			t.Errorf("%s errors = %v", field, errs[field])
		}
	}
}

func TestSignIn_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
		wantBody string
	}{
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, `{"error":"Invalid email or password."}`},
		{domain.ErrAccountLocked, http.StatusUnauthorized, `{"error":"Your account is locked."}`},
		{domain.ErrUnconfirmed, http.StatusUnauthorized, `{"error":"You have to confirm your email address before continuing."}`},
		{errors.New("db down"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			uc := &fakeAuth{signIn: func(context.Context, string, string, domain.SignInMeta) (*usecase.SignInResult, error) {
				return nil, tt.err
			}}
			w := do(uc, http.MethodPost, "/auth/sign_in", `{"email":"a@example.com","password":"x"}`)
			if w.Code != tt.wantCode || w.Body.String() != tt.wantBody {
				t.Errorf("got %d %s, want %d %s", w.Code, w.Body.String(), tt.wantCode, tt.wantBody)
			}
		})
	}
}

// ---- sessions ----

func TestSignOut_Returns204(t *testing.T) {
	uc := &fakeAuth{signOut: func(_ context.Context, p *domain.Principal) error {
		if p != testPrincipal {
			t.Error("handler did not pass the principal through")
		}
		return nil
	}}
	if w := do(uc, http.MethodDelete, "/auth/sign_out", ""); w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

func TestListSessions_MarksCurrent(t *testing.T) {
	uc := &fakeAuth{listSessions: func(context.Context, *domain.Principal) ([]*domain.Session, error) {
		return []*domain.Session{{ID: "s-1"}, {ID: "s-2"}}, nil
	}}

	w := do(uc, http.MethodGet, "/auth/sessions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	items, _ := decode(t, w)["sessions"].([]any)
	if len(items) != 2 {
		t.Fatalf("sessions = %v", items)
	}
	first, _ := items[0].(map[string]any)
	second, _ := items[1].(map[string]any)
	if first["current"] != true || second["current"] != false {
		t.Errorf("current flags = %v / %v", first["current"], second["current"])
	}
}

func TestRevokeSession_NotFound_Returns404(t *testing.T) {
	uc := &fakeAuth{revokeSession: func(_ context.Context, _ *domain.Principal, id string) error {
		if id != "s-9" {
			t.Errorf("id = %q", id)
		}
		return domain.ErrSessionNotFound
	}}
	if w := do(uc, http.MethodDelete, "/auth/sessions/s-9", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// ---- registration / profile ----

func TestSignUp_ValidationErrors_Returns422(t *testing.T) {
	uc := &fakeAuth{signUp: func(context.Context, usecase.SignUpInput) (*domain.User, error) {
		return nil, domain.ValidationErrors{"email": {"has already been taken"}}
	}}

	w := do(uc, http.MethodPost, "/auth/registration", `{"email":"ann@example.com","password":"longenough"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if want := `{"errors":{"email":["has already been taken"]}}`; w.Body.String() != want {
		t.Errorf("body = %s, want %s", w.Body.String(), want)
	}
}

func TestSignUp_Success_Returns201(t *testing.T) {
	uc := &fakeAuth{signUp: func(_ context.Context, in usecase.SignUpInput) (*domain.User, error) {
		return &domain.User{ID: "user-2", Email: in.Email, Name: in.Name}, nil
	}}

	w := do(uc, http.MethodPost, "/auth/registration", `{"email":"bob@example.com","password":"longenough","name":"Bob"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if body := decode(t, w); body["email"] != "bob@example.com" || body["name"] != "Bob" {
		t.Errorf("body = %v", body)
	}
}

func TestUpdateProfile_PassesOnlyProvidedFields(t *testing.T) {
	uc := &fakeAuth{updateProfile: func(_ context.Context, _ *domain.Principal, in usecase.UpdateProfileInput) (*domain.User, error) {
		if in.Name == nil || *in.Name != "Annie" || in.Email != nil || in.Password != nil {
			t.Errorf("input = %+v", in)
		}
		return &domain.User{ID: "user-1", Name: *in.Name}, nil
	}}

	if w := do(uc, http.MethodPatch, "/auth/profile", `{"name":"Annie"}`); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestDeleteAccount_RequiresCurrentPassword(t *testing.T) {
	if w := do(&fakeAuth{}, http.MethodDelete, "/auth/profile", `{}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

// ---- recovery ----

func TestRequestPasswordReset_UnknownEmail_Returns404(t *testing.T) {
	uc := &fakeAuth{requestPasswordReset: func(context.Context, string) error { return domain.ErrUserNotFound }}
	if w := do(uc, http.MethodPost, "/auth/password", `{"email":"x@example.com"}`); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestResetPassword_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
	}{
		{nil, http.StatusNoContent},
		{domain.ErrTokenNotFound, http.StatusNotFound},
		{domain.ErrTokenExpired, http.StatusGone},
		{domain.ValidationErrors{"password": {"is too short (minimum is 8 characters)"}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		uc := &fakeAuth{resetPassword: func(_ context.Context, in usecase.ResetPasswordInput) error {
			if in.Token != "tok" {
				t.Errorf("token = %q", in.Token)
			}
			return tt.err
		}}
		w := do(uc, http.MethodPut, "/auth/password", `{"reset_password_token":"tok","password":"new password"}`)
		if w.Code != tt.wantCode {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.wantCode)
		}
	}
}

func TestConfirm_ReadsTokenFromQuery(t *testing.T) {
	uc := &fakeAuth{confirm: func(_ context.Context, raw string) (*domain.User, error) {
		if raw != "abc" {
			return nil, domain.ErrTokenNotFound
		}
		return testPrincipal.User, nil
	}}
	if w := do(uc, http.MethodGet, "/auth/confirmation?token=abc", ""); w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if w := do(uc, http.MethodGet, "/auth/confirmation?token=zzz", ""); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRequestUnlock_NotLocked_Returns422(t *testing.T) {
	uc := &fakeAuth{requestUnlock: func(context.Context, string) error {
		return domain.ValidationErrors{"email": {"was not locked"}}
	}}
	if w := do(uc, http.MethodPost, "/auth/unlock", `{"email":"ann@example.com"}`); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestUnlock_Returns204(t *testing.T) {
	uc := &fakeAuth{unlock: func(context.Context, string) error { return nil }}
	if w := do(uc, http.MethodGet, "/auth/unlock?token=u", ""); w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
}

// ---- invitation ----

func TestInvite_Returns201(t *testing.T) {
	uc := &fakeAuth{invite: func(_ context.Context, p *domain.Principal, in usecase.InviteInput) (*domain.User, error) {
		if p != testPrincipal || in.Email != "bob@example.com" {
			t.Errorf("invite(%v, %+v)", p, in)
		}
		return &domain.User{ID: "user-2", Email: in.Email}, nil
	}}
	if w := do(uc, http.MethodPost, "/auth/invitation", `{"email":"bob@example.com"}`); w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}

func TestAcceptInvitation_Expired_Returns410(t *testing.T) {
	uc := &fakeAuth{acceptInvitation: func(context.Context, usecase.AcceptInvitationInput, domain.SignInMeta) (*usecase.SignInResult, error) {
		return nil, domain.ErrTokenExpired
	}}
	w := do(uc, http.MethodPut, "/auth/invitation", `{"invitation_token":"inv","password":"new password"}`)
	if w.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", w.Code)
	}
}
