package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	sec "FreightLink/tools/security"

	"github.com/gin-gonic/gin"
)

func testRouter(opts *Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/whoami", Middleware(opts), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserIDKey))
	})
	return r
}

func TestMiddlewareBearerHeader(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	token, _, _, err := sec.Generate(opts.JWT, "u1", nil)
	if err != nil {
		t.Fatal(err)
	}

	r := testRouter(opts)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "u1" {
		t.Fatalf("code=%d body=%q", w.Code, w.Body.String())
	}
}

func TestMiddlewareQueryToken(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	token, _, _, err := sec.Generate(opts.JWT, "u2", nil)
	if err != nil {
		t.Fatal(err)
	}

	r := testRouter(opts)
	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "u2" {
		t.Fatalf("code=%d body=%q", w.Code, w.Body.String())
	}
}

func TestMiddlewareRejects(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	r := testRouter(opts)

	// 没带凭证
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}

	// 伪造凭证
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer fake.token.here")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestExtractTokenQueryDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/ws?token=abc", nil)
	if got := ExtractToken(c, false); got != "" {
		t.Fatalf("query token should be ignored, got %q", got)
	}
	if got := ExtractToken(c, true); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
