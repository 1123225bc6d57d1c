package backend_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"

	"github.com/openconf/cloud/backend"
)

const (
	testSessionID    = "a9ff1695-60d8-49e2-aa2d-3b4c5200da70"
	testSessionKey   = "uid"
	testSessionValue = "someone@openconf.org"
)

// testService is used to pass global scope variables to handlers.
type testService struct {
	t *testing.T
}

// TestFiberHandlerSession tests the session round trip of the FiberHandler.
func TestFiberHandlerSession(t *testing.T) {
	app := fiber.New()
	svc := &testService{t: t}

	// Register the test endpoints.
	app.Get("/set-session", svc.setHandler) // Set session creates a new session.
	app.Get("/get-session", svc.getHandler) // Get session checks the created session.

	// Make a request to create a new session.
	req := httptest.NewRequest(http.MethodGet, "/set-session", nil)
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	// Get the cookies from the response.
	cookies := resp.Cookies()

	// Check that the cookies are there, and are set correctly.
	assert.Len(t, cookies, 1, "Expected 1 cookie to be set")
	assert.Equal(t, testSessionID, cookies[0].Name)

	// Since the cookie is URL escaped, it must be decoded first.
	v, err := url.QueryUnescape(cookies[0].Value)
	assert.NoError(t, err)

	// Unmarshal the JSON to get the value.
	var actualMap map[string]string
	err = json.Unmarshal([]byte(v), &actualMap)
	assert.NoError(t, err)

	// Compare to the expected cookie values.
	expectedMap := map[string]string{
		testSessionKey: testSessionValue,
	}
	assert.Equal(t, expectedMap, actualMap, "Cookie value does not match")

	// Make a new request to the get-session endpoint.
	req2 := httptest.NewRequest(http.MethodGet, "/get-session", nil)

	// Add the newly obtained cookie.
	req2.AddCookie(cookies[0])
	resp2, err := app.Test(req2)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp2.StatusCode)
}

func (svc *testService) setHandler(c *fiber.Ctx) error {
	h := backend.NewFiberHandler(c)
	sess, err := h.LoadSession(testSessionID)
	if err != nil {
		svc.t.Errorf("error loading session: %v", err)
	}

	// Create and set some values.
	sess.Set(testSessionKey, testSessionValue)
	sess.SetMaxAge(7 * 24 * time.Hour)
	return h.SaveSession(sess)
}

func (svc *testService) getHandler(c *fiber.Ctx) error {
	h := backend.NewFiberHandler(c)
	sess, err := h.LoadSession(testSessionID)
	if err != nil {
		svc.t.Errorf("error loading session: %v", err)
	}

	var v string
	err = sess.Get(testSessionKey, &v)
	assert.NoError(svc.t, err)
	if v != testSessionValue {
		svc.t.Errorf("mismatch in set value and gotten value, got: %s, wanted: %s", v, testSessionValue)
	}

	return nil
}

// TestNetHandlerSession tests the session round trip of the NetHandler.
func TestNetHandlerSession(t *testing.T) {
	store := sessions.NewCookieStore(securecookie.GenerateRandomKey(32))

	// Set a session value and capture the response cookie.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	h := backend.NewNetHandler(w, r, store)

	sess, err := h.LoadSession(testSessionID)
	assert.NoError(t, err)
	assert.NoError(t, sess.Set(testSessionKey, testSessionValue))
	assert.NoError(t, h.SaveSession(sess))

	cookies := w.Result().Cookies()
	assert.Len(t, cookies, 1)

	// Load the session from a fresh request carrying the cookie.
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	h2 := backend.NewNetHandler(httptest.NewRecorder(), r2, store)

	sess2, err := h2.LoadSession(testSessionID)
	assert.NoError(t, err)

	var v string
	assert.NoError(t, sess2.Get(testSessionKey, &v))
	assert.Equal(t, testSessionValue, v)

	// A missing key reports ErrNoSuchKey.
	err = sess2.Get("missing", &v)
	assert.ErrorIs(t, err, backend.ErrNoSuchKey)
}
