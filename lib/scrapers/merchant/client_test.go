package merchant

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bonuswatch-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	cleanup := telemetry.SetupForTesting("test:scrapers/merchant")
	defer cleanup()
	m.Run()
}

type fakeSite struct {
	// page served at /
	html string
	// handler for /api/v1/index.php keyed by the module form field
	modules map[string]http.HandlerFunc
}

func (f fakeSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, f.html)
	})
	mux.HandleFunc("/api/v1/index.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		r.ParseForm()
		handle, ok := f.modules[r.PostFormValue("module")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handle(w, r)
	})
	return mux
}

func jsonResponse(v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
}

const goodPage = `<html><head><script>
var MERCHANTID = 12345;
var MERCHANTNAME = "Lucky Panda";
</script></head><body>welcome</body></html>`

func goodLogin() http.HandlerFunc {
	return jsonResponse(map[string]any{
		"status": "SUCCESS",
		"data":   map[string]any{"id": 777.0, "token": "tok-abc"},
	})
}

func testClient() *Client {
	return NewClient(ClientOptions{Timeout: time.Second * 5})
}

func requireKind(t *testing.T, err error, want FailureKind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := Kind(err)
	require.True(t, ok, "error is not a merchant error: %v", err)
	require.Equal(t, want, kind)
}

func TestAuthenticateSuccess(t *testing.T) {
	srv := httptest.NewServer(fakeSite{
		html:    goodPage,
		modules: map[string]http.HandlerFunc{"/users/login": goodLogin()},
	}.handler())
	defer srv.Close()

	session, err := testClient().Authenticate(
		context.Background(), srv.URL,
		Credential{Username: "0123456789", Password: "hunter2"},
	)
	require.NoError(t, err)
	require.Equal(t, "12345", session.MerchantID)
	require.Equal(t, "Lucky Panda", session.MerchantName)
	require.Equal(t, "777", session.AccessID)
	require.Equal(t, "tok-abc", session.Token)
	require.Equal(t, srv.URL+"/api/v1/index.php", session.APIURL)
}

func TestAuthenticateInvalidCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(fakeSite{
		html:    goodPage,
		modules: map[string]http.HandlerFunc{"/users/login": goodLogin()},
	}.handler())
	defer srv.Close()

	// the self-signed httptest certificate stands in for the invalid
	// certificates these sites typically present
	session, err := testClient().Authenticate(
		context.Background(), srv.URL, Credential{Username: "u", Password: "p"},
	)
	require.NoError(t, err)
	require.Equal(t, "12345", session.MerchantID)
}

func TestAuthenticateMerchantIDMissing(t *testing.T) {
	srv := httptest.NewServer(fakeSite{
		html: "<html><body>please verify you are human</body></html>",
	}.handler())
	defer srv.Close()

	session, err := testClient().Authenticate(
		context.Background(), srv.URL, Credential{Username: "u", Password: "p"},
	)
	requireKind(t, err, KindMerchantIDNotFound)
	require.Zero(t, session)
}

func TestAuthenticateEmptyPage(t *testing.T) {
	srv := httptest.NewServer(fakeSite{html: "  \n "}.handler())
	defer srv.Close()

	_, err := testClient().Authenticate(
		context.Background(), srv.URL, Credential{Username: "u", Password: "p"},
	)
	requireKind(t, err, KindEmptyPage)
}

func TestAuthenticateFetchError(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close()

	_, err := testClient().Authenticate(
		context.Background(), srv.URL, Credential{Username: "u", Password: "p"},
	)
	requireKind(t, err, KindFetch)
}

func TestAuthenticateRejected(t *testing.T) {
	srv := httptest.NewServer(fakeSite{
		html: goodPage,
		modules: map[string]http.HandlerFunc{
			"/users/login": jsonResponse(map[string]any{
				"status":  "FAILED",
				"message": "Invalid mobile or password.",
			}),
		},
	}.handler())
	defer srv.Close()

	_, err := testClient().Authenticate(
		context.Background(), srv.URL, Credential{Username: "u", Password: "p"},
	)
	requireKind(t, err, KindLoginRejected)

	// the payload must ride along so the rejection reason is inspectable
	var merr *Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, "Invalid mobile or password.", merr.Payload["message"])
}

func TestAuthenticateNotJSON(t *testing.T) {
	srv := httptest.NewServer(fakeSite{
		html: goodPage,
		modules: map[string]http.HandlerFunc{
			"/users/login": func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "<html>502 bad gateway</html>")
			},
		},
	}.handler())
	defer srv.Close()

	_, err := testClient().Authenticate(
		context.Background(), srv.URL, Credential{Username: "u", Password: "p"},
	)
	requireKind(t, err, KindLoginDecode)
}

func TestAuthenticateMalformedSession(t *testing.T) {
	srv := httptest.NewServer(fakeSite{
		html: goodPage,
		modules: map[string]http.HandlerFunc{
			"/users/login": jsonResponse(map[string]any{
				"status": "SUCCESS",
				"data":   map[string]any{"id": 777.0},
			}),
		},
	}.handler())
	defer srv.Close()

	_, err := testClient().Authenticate(
		context.Background(), srv.URL, Credential{Username: "u", Password: "p"},
	)
	requireKind(t, err, KindMalformedSession)
}

func TestExtractMerchantInfoVariants(t *testing.T) {
	id, name := extractMerchantInfo([]byte(`var merchantid = 42; var merchantname = 'Quiet Tiger';`))
	require.Equal(t, "42", id)
	require.Equal(t, "Quiet Tiger", name)

	// name is optional
	id, name = extractMerchantInfo([]byte(`<script>var MERCHANTID = 9;</script>`))
	require.Equal(t, "9", id)
	require.Equal(t, "", name)

	id, _ = extractMerchantInfo([]byte(`var MERCHANTID = "not-numeric";`))
	require.Equal(t, "", id)
}

func TestCleanBaseURL(t *testing.T) {
	cleaned, err := CleanBaseURL(" https://example.com/some/path?q=1#frag ")
	require.NoError(t, err)
	require.Equal(t, "https://example.com", cleaned)

	_, err = CleanBaseURL("not a url at all ://")
	require.Error(t, err)

	_, err = CleanBaseURL("example.com/no-scheme")
	require.Error(t, err)
}
