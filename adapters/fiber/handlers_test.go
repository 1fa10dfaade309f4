package fiber

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/adapters/disk"
	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

const testPassword = "Password1!"

type testServer struct {
	t   *testing.T
	app *fiber.App
}

// failingStore fails user lookups by email.
type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.Store.GetUserByEmail(ctx, email)
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWith(t, fiber.Config{Immutable: true}, memory.New())
}

func newTestServerWith(t *testing.T, appConfig fiber.Config, storage core.AuthStorage) *testServer {
	t.Helper()

	dir := t.TempDir()
	uploader, err := disk.New(dir, "/uploads")
	require.NoError(t, err)

	app := fiber.New(appConfig)
	_, err = bantay.New(bantay.Config{
		Storage:        storage,
		HTTP:           New(app, Config{UploadDir: dir}),
		Uploader:       uploader,
		PasswordHasher: crypto.NewBcrypt(bcrypt.MinCost),
	})
	require.NoError(t, err)

	return &testServer{t: t, app: app}
}

func (s *testServer) do(req *http.Request, session *http.Cookie) *http.Response {
	s.t.Helper()
	if session != nil {
		req.AddCookie(session)
	}
	resp, err := s.app.Test(req)
	require.NoError(s.t, err)
	s.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (s *testServer) get(path string, session *http.Cookie) *http.Response {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil), session)
}

func (s *testServer) postForm(path string, form url.Values, session *http.Cookie) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, session)
}

func (s *testServer) postMultipart(path string, fields map[string]string, filename string, content []byte, session *http.Cookie) *http.Response {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(s.t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile(pictureField, filename)
		require.NoError(s.t, err)
		_, err = part.Write(content)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.do(req, session)
}

func (s *testServer) register(username, email string) {
	s.t.Helper()
	resp := s.postForm("/register", url.Values{
		"username": {username},
		"email":    {email},
		"password": {testPassword},
	}, nil)
	assertRedirect(s.t, resp, "/login")
}

func (s *testServer) login(email string) *http.Cookie {
	s.t.Helper()
	resp := s.postForm("/login", url.Values{"email": {email}, "password": {testPassword}}, nil)
	assertRedirect(s.t, resp, "/dashboard")

	cookie := sessionCookie(resp)
	require.NotNil(s.t, cookie, "login should set the session cookie")
	return cookie
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	return nil
}

func assertRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	assert.GreaterOrEqual(t, resp.StatusCode, 300, "status")
	assert.Less(t, resp.StatusCode, 400, "status")
	assert.Equal(t, location, resp.Header.Get("Location"))
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHome(t *testing.T) {
	s := newTestServer(t)

	resp := s.get("/", nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body(t, resp), "Welcome")
}

// Requirement: guarded pages send anonymous visitors to the login form and
// guarded form posts answer 401.
func TestGuardedRoutes_Anonymous(t *testing.T) {
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/dashboard"},
		{http.MethodGet, "/profile"},
		{http.MethodPost, "/upload-profile"},
		{http.MethodPost, "/profile/edit"},
		{http.MethodPost, "/profile/delete"},
	}

	for _, test := range tests {
		t.Run(test.method+" "+test.path, func(t *testing.T) {
			s := newTestServer(t)

			resp := s.do(httptest.NewRequest(test.method, test.path, nil), nil)

			if test.method == http.MethodGet {
				assertRedirect(t, resp, "/login")
				return
			}
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, body(t, resp))
		})
	}
}

func TestGuardedRoutes_UnknownCookieIsAnonymous(t *testing.T) {
	s := newTestServer(t)

	resp := s.get("/dashboard", &http.Cookie{Name: CookieName, Value: "forged"})

	assertRedirect(t, resp, "/login")
}

func TestRegisterLoginDashboard(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	s.register("alice", "alice@example.com")

	// Act
	cookie := s.login("alice@example.com")
	resp := s.get("/dashboard", cookie)

	// Assert
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)
	assert.Equal(t, "/", cookie.Path)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)
	assert.Contains(t, html, "Hello, alice.")
	assert.Contains(t, html, core.DefaultProfilePicture)
}

func TestRegister_FormErrors(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		wantMsg string
	}{
		{
			name:    "missing fields",
			form:    url.Values{"username": {"bob"}, "email": {"bob@example.com"}},
			wantMsg: "All fields are required",
		},
		{
			name:    "weak password",
			form:    url.Values{"username": {"bob"}, "email": {"bob@example.com"}, "password": {"password1"}},
			wantMsg: core.PasswordRule,
		},
		{
			name:    "duplicate email",
			form:    url.Values{"username": {"alice2"}, "email": {"alice@example.com"}, "password": {testPassword}},
			wantMsg: "User already exists",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			s := newTestServer(t)
			s.register("alice", "alice@example.com")

			// Act
			resp := s.postForm("/register", test.form, nil)

			// Assert
			assert.Equal(t, http.StatusOK, resp.StatusCode, "form errors re-render")
			assert.Contains(t, body(t, resp), test.wantMsg)
		})
	}
}

func TestRegister_WithPicture(t *testing.T) {
	s := newTestServer(t)

	resp := s.postMultipart("/register", map[string]string{
		"username": "carol",
		"email":    "carol@example.com",
		"password": testPassword,
	}, "carol.png", []byte("png"), nil)
	assertRedirect(t, resp, "/login")

	html := body(t, s.get("/profile", s.login("carol@example.com")))
	assert.Contains(t, html, `src="/uploads/`)
	assert.NotContains(t, html, core.DefaultProfilePicture)
}

func TestLogin_GenericFailure(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "alice@example.com")

	wrongPassword := s.postForm("/login", url.Values{"email": {"alice@example.com"}, "password": {"Wrong123!"}}, nil)
	unknownEmail := s.postForm("/login", url.Values{"email": {"nobody@example.com"}, "password": {testPassword}}, nil)

	for _, resp := range []*http.Response{wrongPassword, unknownEmail} {
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Nil(t, sessionCookie(resp))
		assert.Contains(t, body(t, resp), "Invalid credentials")
	}
}

// Requirement: five failures block the email; even the right password is
// then refused with the rate-limit message.
func TestLogin_Throttled(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "alice@example.com")

	for i := 0; i < 5; i++ {
		resp := s.postForm("/login", url.Values{"email": {"alice@example.com"}, "password": {fmt.Sprintf("Wrong%d!x", i)}}, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := s.postForm("/login", url.Values{"email": {"alice@example.com"}, "password": {testPassword}}, nil)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, sessionCookie(resp))
	assert.Contains(t, body(t, resp), "Too many failed attempts. Try again later.")
}

func TestLogout(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	s.register("alice", "alice@example.com")
	cookie := s.login("alice@example.com")

	// Act
	resp := s.get("/logout", cookie)

	// Assert
	assertRedirect(t, resp, "/login")
	cleared := sessionCookie(resp)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.True(t, cleared.Expires.Before(time.Now()))

	assertRedirect(t, s.get("/dashboard", cookie), "/login")
}

func TestLogout_Anonymous(t *testing.T) {
	s := newTestServer(t)

	assertRedirect(t, s.get("/logout", nil), "/login")
}

func TestEditProfile(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "alice@example.com")
	s.register("bob", "bob@example.com")
	cookie := s.login("alice@example.com")

	t.Run("rename", func(t *testing.T) {
		resp := s.postForm("/profile/edit", url.Values{"username": {"alicia"}}, cookie)
		assertRedirect(t, resp, "/profile")

		html := body(t, s.get("/profile", cookie))
		assert.Contains(t, html, "<h1>alicia</h1>")
		assert.Contains(t, html, "alice@example.com")
	})

	t.Run("email taken", func(t *testing.T) {
		resp := s.postForm("/profile/edit", url.Values{"email": {"bob@example.com"}}, cookie)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.JSONEq(t, `{"error":"User already exists"}`, body(t, resp))
	})

	t.Run("session follows the edit", func(t *testing.T) {
		html := body(t, s.get("/dashboard", cookie))
		assert.Contains(t, html, "Hello, alicia.")
	})
}

func TestUploadPicture(t *testing.T) {
	s := newTestServer(t)
	s.register("alice", "alice@example.com")
	cookie := s.login("alice@example.com")

	t.Run("missing file", func(t *testing.T) {
		resp := s.postMultipart("/upload-profile", nil, "", nil, cookie)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.JSONEq(t, `{"error":"A profile picture is required"}`, body(t, resp))
	})

	t.Run("replaces and serves the picture", func(t *testing.T) {
		resp := s.postMultipart("/upload-profile", nil, "me.png", []byte("new picture"), cookie)
		assertRedirect(t, resp, "/profile")

		html := body(t, s.get("/profile", cookie))
		start := strings.Index(html, `src="/uploads/`)
		require.GreaterOrEqual(t, start, 0, "profile should show the uploaded picture")
		ref := html[start+len(`src="`):]
		ref = ref[:strings.Index(ref, `"`)]

		served := s.get(ref, nil)
		assert.Equal(t, http.StatusOK, served.StatusCode)
		assert.Equal(t, "new picture", body(t, served))
	})
}

// Requirement: deleting the profile ends the session; /profile then sends
// the visitor to the login form.
func TestDeleteProfile(t *testing.T) {
	// Arrange
	s := newTestServer(t)
	s.register("alice", "alice@example.com")
	cookie := s.login("alice@example.com")

	// Act
	resp := s.postForm("/profile/delete", nil, cookie)

	// Assert
	assertRedirect(t, resp, "/register")
	cleared := sessionCookie(resp)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)

	assertRedirect(t, s.get("/profile", cookie), "/login")

	relogin := s.postForm("/login", url.Values{"email": {"alice@example.com"}, "password": {testPassword}}, nil)
	assert.Contains(t, body(t, relogin), "Invalid credentials")
}

// Requirement: stored values survive later requests even when fiber reuses
// its request buffers.
func TestFormValues_OutliveTheRequest(t *testing.T) {
	// Arrange: a mutable app, so form values alias fasthttp's buffers
	store := memory.New()
	s := newTestServerWith(t, fiber.Config{}, store)
	s.register("alice", "alice@example.com")
	s.register("bob", "bob@example.com")
	cookie := s.login("alice@example.com")

	// Act
	assertRedirect(t, s.postForm("/profile/edit", url.Values{"username": {"alicia"}}, cookie), "/profile")
	for i := 0; i < 5; i++ {
		s.postForm("/login", url.Values{"email": {"bob@example.com"}, "password": {fmt.Sprintf("Wrong%d!x", i)}}, nil)
	}
	for i := 0; i < 3; i++ {
		s.postForm("/login", url.Values{"email": {fmt.Sprintf("someone%d@example.org", i)}, "password": {"Whatever1!"}}, nil)
		s.get("/profile", cookie)
	}

	// Assert
	alice, err := store.GetUserByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alicia", alice.Username)
	assert.Equal(t, "alice@example.com", alice.Email)

	bob, err := store.GetUserByEmail(context.Background(), "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bob", bob.Username)
	assert.Equal(t, "bob@example.com", bob.Email)

	html := body(t, s.get("/dashboard", cookie))
	assert.Contains(t, html, "Hello, alicia.")

	blocked := s.postForm("/login", url.Values{"email": {"bob@example.com"}, "password": {testPassword}}, nil)
	assert.Contains(t, body(t, blocked), "Too many failed attempts. Try again later.")

	s.login("alice@example.com")
}

// Requirement: a server fault on a form post re-renders the form at 500
// without leaking the detail.
func TestFormPosts_ServerError(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		form    url.Values
		wantTag string
	}{
		{
			name:    "register",
			path:    "/register",
			form:    url.Values{"username": {"alice"}, "email": {"alice@example.com"}, "password": {testPassword}},
			wantTag: `action="/register"`,
		},
		{
			name:    "login",
			path:    "/login",
			form:    url.Values{"email": {"alice@example.com"}, "password": {testPassword}},
			wantTag: `action="/login"`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			store := &failingStore{Store: memory.New(), err: errors.New("connection refused")}
			s := newTestServerWith(t, fiber.Config{Immutable: true}, store)

			// Act
			resp := s.postForm(test.path, test.form, nil)

			// Assert
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
			html := body(t, resp)
			assert.Contains(t, html, test.wantTag)
			assert.Contains(t, html, serverErrorMessage)
			assert.NotContains(t, html, "connection refused")
		})
	}
}

// Requirement: mapErrorToStatus maps bantay errors to correct HTTP status codes
func TestMapErrorToStatus_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "nil is 200", err: nil, wantStatus: http.StatusOK},
		{name: "validation is 400", err: core.ErrPasswordPolicy, wantStatus: http.StatusBadRequest},
		{name: "picture required is 400", err: core.ErrPictureRequired, wantStatus: http.StatusBadRequest},
		{name: "unauthorized is 401", err: core.ErrUnauthorized, wantStatus: http.StatusUnauthorized},
		{name: "invalid credentials is 401", err: core.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized},
		{name: "expired session is 401", err: core.ErrSessionExpired, wantStatus: http.StatusUnauthorized},
		{name: "missing user is 404", err: core.ErrUserNotFound, wantStatus: http.StatusNotFound},
		{name: "duplicate is 409", err: core.ErrUserExists, wantStatus: http.StatusConflict},
		{name: "rate limited is 429", err: core.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{
			name:       "wrapped internal is 500",
			err:        fmt.Errorf("%w: failed to get user: %w", core.ErrInternal, errors.New("conn reset")),
			wantStatus: http.StatusInternalServerError,
		},
		{name: "unknown is 500", err: errors.New("unknown error"), wantStatus: http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Act
			status := mapErrorToStatus(test.err)

			// Assert
			if status != test.wantStatus {
				t.Errorf("mapErrorToStatus should map error to %d; got %d", test.wantStatus, status)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "validation message", err: core.ErrFieldsRequired, want: "All fields are required"},
		{name: "sentinel message", err: core.ErrUserExists, want: "User already exists"},
		{
			name: "internal detail is hidden",
			err:  fmt.Errorf("%w: failed to save user: %w", core.ErrInternal, errors.New("pq: relation users does not exist")),
			want: serverErrorMessage,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.want, userMessage(test.err))
		})
	}
}
