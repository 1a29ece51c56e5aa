package echoapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/reviewdesk/core"
	"github.com/trezcool/reviewdesk/core/user"
	emailsvc "github.com/trezcool/reviewdesk/services/email"
	"github.com/trezcool/reviewdesk/testutil"
)

func Test_userApi_login(t *testing.T) {
	app := setup(t)
	reviewer := app.createUser(t, "reviewer", user.RoleReviewer)
	testutil.CreateUser(t, app.users, "Gone", "gone", "gone@test.cd", testPassword, nil, false)

	login := func(uname, pwd string) []byte {
		return marchallObj(t, LoginRequest{Username: uname, Password: pwd})
	}

	app.run(t, []httpTest{
		{
			name: "missing fields", method: http.MethodPost, path: "/v1/users/login", body: login("", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": "this field is required",
				"password": "this field is required",
			}),
		},
		{
			name: "unknown user", method: http.MethodPost, path: "/v1/users/login", body: login("nobody", testPassword),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/users/login", body: login("reviewer", "nope"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/users/login", body: login("gone", testPassword),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("success with email, any case", func(t *testing.T) {
		rec := app.serve(newRequest(http.MethodPost, "/v1/users/login", login("REVIEWER@test.cd", testPassword)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		claims, err := app.tokens.Parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, reviewer.ID, claims.Subject)
		assert.Equal(t, "reviewer", claims.Username)
		assert.True(t, claims.IsReviewer)
		assert.False(t, claims.IsAdmin)

		usr, err := app.users.GetUser(ctxBg(), user.GetFilter{ID: reviewer.ID})
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())
	})
}

func Test_userApi_auth(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin)
	reviewer := app.createUser(t, "reviewer", user.RoleReviewer)
	gone := app.createUser(t, "gone", user.RoleReviewer)
	goneToken := app.token(t, gone)
	gone.IsActive = false
	_, err := app.users.UpdateUser(ctxBg(), gone)
	require.NoError(t, err)

	otherKey := tokenizer{key: []byte("other"), issuer: app.conf.AppName, expiration: time.Minute}
	forged, err := otherKey.Sign(otherKey.Claims(admin))
	require.NoError(t, err)
	otherIssuer := tokenizer{key: []byte(app.conf.SecretKey), issuer: "other", expiration: time.Minute}
	foreign, err := otherIssuer.Sign(otherIssuer.Claims(admin))
	require.NoError(t, err)
	noAudience := app.tokens.Claims(admin)
	noAudience.Audience = nil
	unaddressed, err := app.tokens.Sign(noAudience)
	require.NoError(t, err)

	app.run(t, []httpTest{
		{
			name: "Auth required", path: "/v1/users",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "missing or malformed jwt"}),
		},
		{
			name: "Forged token", path: "/v1/users", token: forged,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "Other issuer", path: "/v1/users", token: foreign,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "No audience", path: "/v1/users", token: unaddressed,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name: "Admin required", path: "/v1/users", token: app.token(t, reviewer),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Deactivated after login", path: "/v1/users/me", token: goneToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "Admin", path: "/v1/users", token: app.token(t, admin)},
		{name: "Me", path: "/v1/users/me", token: app.token(t, reviewer), wantData: marchallObj(t, reviewer)},
	})

	t.Run("Other auth scheme", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/users")
		req.Header.Set("Authorization", "Basic "+app.token(t, admin))
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "missing or malformed jwt"}),
		}, app.serve(req, rec))
	})

	t.Run("Expired token", func(t *testing.T) {
		defer func() { core.NowFunc = time.Now }()
		token := app.token(t, admin)
		core.NowFunc = func() time.Time { return time.Now().Add(time.Hour) }

		rec := app.serve(newAuthRequest(http.MethodGet, "/v1/users/me", token))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func Test_userApi_create(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin)
	adminToken := app.token(t, admin)

	t.Run("validation", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodPost, "/v1/users", adminToken, marchallObj(t, user.NewUser{Name: "Bob"})))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var fields map[string]string
		decode(t, rec, &fields)
		assert.Contains(t, fields, "password")
	})

	t.Run("cannot grant a higher role", func(t *testing.T) {
		data := user.NewUser{
			Name: "Boss", Username: "boss", Password: testPassword, PasswordConfirm: testPassword,
			Roles: []string{user.RoleAdminOwner},
		}
		rec := app.serve(newAuthRequest(http.MethodPost, "/v1/users", adminToken, marchallObj(t, data)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"roles": "not enough rights to set these roles"}`, rec.Body.String())
	})

	t.Run("reviewer with sections", func(t *testing.T) {
		data := user.NewUser{
			Name: "Rev", Username: "rev", Password: testPassword, PasswordConfirm: testPassword,
			Roles: []string{user.RoleReviewer}, Sections: []string{"a", " b "},
		}
		rec := app.serve(newAuthRequest(http.MethodPost, "/v1/users", adminToken, marchallObj(t, data)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "rev", usr.Username)
		assert.Equal(t, []string{"A", "B"}, usr.Sections)
		assert.True(t, usr.IsActive)
	})

	t.Run("duplicate username", func(t *testing.T) {
		data := user.NewUser{Name: "Admin 2", Username: "admin", Password: testPassword, PasswordConfirm: testPassword}
		rec := app.serve(newAuthRequest(http.MethodPost, "/v1/users", adminToken, marchallObj(t, data)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	})
}

func Test_userApi_detail(t *testing.T) {
	app := setup(t)
	admin := app.createUser(t, "admin", user.RoleAdmin)
	reviewer := app.createUser(t, "reviewer", user.RoleReviewer)
	other := app.createUser(t, "other", user.RoleReviewer)
	adminToken := app.token(t, admin)
	reviewerToken := app.token(t, reviewer)

	app.run(t, []httpTest{
		{name: "self", path: "/v1/users/" + reviewer.ID, token: reviewerToken, wantData: marchallObj(t, reviewer)},
		{
			name: "someone else", path: "/v1/users/" + other.ID, token: reviewerToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{name: "admin reads anyone", path: "/v1/users/" + other.ID, token: adminToken, wantData: marchallObj(t, other)},
		{name: "unknown", path: "/v1/users/nope", token: adminToken, wantCode: http.StatusNotFound},
		{
			name: "reviewer cannot change own roles", method: http.MethodPut, path: "/v1/users/" + reviewer.ID,
			token: reviewerToken, body: []byte(`{"roles": ["admin:"]}`), wantCode: http.StatusForbidden,
		},
		{
			name: "reviewer cannot delete", method: http.MethodDelete, path: "/v1/users/" + other.ID,
			token: reviewerToken, wantCode: http.StatusNotFound,
		},
		{
			name: "admin cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden,
		},
		{
			name: "admin cannot bulk delete self", method: http.MethodDelete, path: "/v1/users?id=" + other.ID + "&id=" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden,
		},
	})

	t.Run("update name", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodPut, "/v1/users/"+reviewer.ID, reviewerToken, []byte(`{"name": " Rita "}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, "Rita", usr.Name)
		assert.Equal(t, reviewer.Username, usr.Username)
	})

	t.Run("admin assigns sections", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodPut, "/v1/users/"+other.ID, adminToken, []byte(`{"sections": ["c"]}`)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		decode(t, rec, &usr)
		assert.Equal(t, []string{"C"}, usr.Sections)
	})

	t.Run("admin deletes", func(t *testing.T) {
		rec := app.serve(newAuthRequest(http.MethodDelete, "/v1/users/"+other.ID, adminToken))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		_, err := app.users.GetUser(ctxBg(), user.GetFilter{ID: other.ID})
		assert.True(t, core.IsNotFound(err))
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	app := setup(t)
	reviewer := app.createUser(t, "reviewer", user.RoleReviewer)

	t.Run("keeps the original issue time", func(t *testing.T) {
		origIat := time.Now().Add(-time.Hour).Unix()
		token, err := app.tokens.Sign(app.tokens.Claims(reviewer, origIat))
		require.NoError(t, err)

		rec := app.serve(newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp LoginResponse
		decode(t, rec, &resp)
		claims, err := app.tokens.Parse(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, origIat, claims.OrigIssuedAt)
	})

	t.Run("refresh window elapsed", func(t *testing.T) {
		token, err := app.tokens.Sign(app.tokens.Claims(reviewer, time.Now().Add(-5*time.Hour).Unix()))
		require.NoError(t, err)

		rec := app.serve(newAuthRequest(http.MethodPost, "/v1/users/token-refresh", token))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error": "refresh has expired"}`, rec.Body.String())
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	app := setup(t)
	app.createUser(t, "reviewer", user.RoleReviewer)
	emailsvc.ResetSentMessages()

	rec := app.serve(newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email": "nobody@test.cd"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, sent := emailsvc.LastSentMessage()
	assert.False(t, sent, "no mail for unknown addresses")

	rec = app.serve(newRequest(http.MethodPost, "/v1/users/password-reset", []byte(`{"email": "Reviewer@test.cd"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent)
	assert.Equal(t, "reviewer@test.cd", msg.To[0].Address)

	rec = app.serve(newRequest(http.MethodPost, "/v1/users/password-reset-confirm",
		[]byte(`{"uid": "bad", "token": "bad", "password": "x", "password_confirm": "x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
