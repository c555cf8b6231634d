package merchant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"bonuswatch-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/codes"
)

type Credential struct {
	Username string
	Password string
}

// Session is the short-lived authenticated credential set for one site,
// one run. It is never persisted and never reused across runs.
type Session struct {
	MerchantID   string
	MerchantName string
	AccessID     string
	Token        string
	APIURL       string
}

// CleanBaseURL reduces a raw target to scheme://host, dropping any
// path, query or fragment the URL list may carry.
func CleanBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("not an absolute url: %q", raw)
	}
	return (&url.URL{Scheme: u.Scheme, Host: u.Host}).String(), nil
}

var (
	merchantIDPattern   = regexp.MustCompile(`(?i)MERCHANTID\s*=\s*(\d+)\s*;`)
	merchantNamePattern = regexp.MustCompile(`(?i)MERCHANTNAME\s*=\s*["'](.*?)["']\s*;`)
)

// extractMerchantInfo pulls the merchant id and optional display name
// out of the page markup. The markers live in inline scripts, so those
// are scanned first; the raw body is the fallback for sites that inline
// them elsewhere.
func extractMerchantInfo(body []byte) (id, name string) {
	var texts []string
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		texts = htmlutil.ScriptTexts(doc)
	}
	texts = append(texts, string(body))

	for _, text := range texts {
		if id == "" {
			groups := merchantIDPattern.FindStringSubmatch(text)
			if len(groups) == 2 {
				id = groups[1]
			}
		}
		if name == "" {
			groups := merchantNamePattern.FindStringSubmatch(text)
			if len(groups) == 2 {
				name = groups[1]
			}
		}
		if id != "" && name != "" {
			break
		}
	}
	return id, name
}

// Authenticate fetches the site's page, extracts its merchant identity
// and exchanges the credential for a session token. Every failure comes
// back as an *Error whose kind says which step broke; no failure here
// should ever abort the run.
func (c *Client) Authenticate(ctx context.Context, baseURL string, cred Credential) (Session, error) {
	ctx, span := tracer.Start(ctx, "client:Authenticate")
	defer span.End()

	fail := func(kind FailureKind, payload map[string]any, err error) (Session, error) {
		span.SetStatus(codes.Error, kind.String())
		return Session{}, &Error{Kind: kind, Site: baseURL, Payload: payload, Err: err}
	}

	res, err := c.http.R().
		SetContext(ctx).
		Get(baseURL)
	if err != nil {
		return fail(KindFetch, nil, err)
	}
	if res.IsError() {
		return fail(KindFetch, nil, fmt.Errorf("status %s", res.Status()))
	}
	body := res.Body()
	if len(bytes.TrimSpace(body)) == 0 {
		return fail(KindEmptyPage, nil, nil)
	}

	merchantID, merchantName := extractMerchantInfo(body)
	if merchantID == "" {
		return fail(KindMerchantIDNotFound, nil, nil)
	}

	apiURL := baseURL + apiPath
	res, err = c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"module":     loginModule,
			"mobile":     cred.Username,
			"password":   cred.Password,
			"merchantId": merchantID,
		}).
		Post(apiURL)
	if err != nil {
		return fail(KindLoginRequest, nil, err)
	}
	if res.IsError() {
		return fail(KindLoginRequest, nil, fmt.Errorf("status %s", res.Status()))
	}

	var payload map[string]any
	err = json.Unmarshal(res.Body(), &payload)
	if err != nil {
		return fail(KindLoginDecode, nil, err)
	}

	if status, _ := payload["status"].(string); status != statusSuccess {
		return fail(KindLoginRejected, payload, nil)
	}

	data, _ := payload["data"].(map[string]any)
	accessID := asString(data["id"])
	token := asString(data["token"])
	if accessID == "" || token == "" {
		// fail closed rather than hand back a half-valid session
		return fail(KindMalformedSession, payload, nil)
	}

	return Session{
		MerchantID:   merchantID,
		MerchantName: merchantName,
		AccessID:     accessID,
		Token:        token,
		APIURL:       apiURL,
	}, nil
}
