package merchant

import (
	"crypto/tls"
	"net/http"
	"strconv"
	"time"

	"bonuswatch-backend/lib/ratelimit"
	"bonuswatch-backend/lib/restyutil"
	"bonuswatch-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/merchant")

const (
	apiPath        = "/api/v1/index.php"
	loginModule    = "/users/login"
	syncModule     = "/users/syncData"
	downlineModule = "/referrer/getDownline"
	statusSuccess  = "SUCCESS"

	defaultTimeout   = time.Second * 15
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Client talks to the white-label merchant platform behind a target
// site. One client is shared by every site in a run; all per-site state
// lives in the Session values it returns.
type Client struct {
	http *resty.Client
}

type ClientOptions struct {
	// defaults to 15s, applied to every request
	Timeout time.Duration
	// shared request pacer, every outbound request waits on it
	Limiter *ratelimit.Limiter
	// defaults to a desktop Chrome user-agent
	UserAgent string
	// when set, every HTTP exchange is dumped here for inspection
	DumpOutput restyutil.InstrumentOutput
}

func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	inner, _ := client.GetClient().Transport.(*http.Transport)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	// target sites commonly present invalid certificates. The bypass
	// wrap installs its own TLS config on the inner transport, so
	// skip-verify must be set afterwards.
	if inner != nil {
		if inner.TLSClientConfig == nil {
			inner.TLSClientConfig = &tls.Config{}
		}
		inner.TLSClientConfig.InsecureSkipVerify = true
	}
	client.SetHeader("user-agent", opts.UserAgent)

	if opts.Limiter != nil {
		limiter := opts.Limiter
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return limiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(client, "scrapers/merchant/http")
	restyutil.AttachDumpOutput(client, opts.DumpOutput)

	return &Client{http: client}
}

// asString renders the loosely-typed values the platform APIs put in
// identifier fields; numeric ids are common.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

func recordList(data map[string]any, key string) []map[string]any {
	list, _ := data[key].([]any)
	var out []map[string]any
	for _, item := range list {
		rec, ok := item.(map[string]any)
		if ok {
			out = append(out, rec)
		}
	}
	return out
}
