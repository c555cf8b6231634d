package merchant

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/codes"
)

// DownlinePage retrieves one page of referral downline records. The
// caller drives pagination; the endpoint keeps serving pages and the
// caller stops once a page yields nothing it hasn't seen.
func (c *Client) DownlinePage(ctx context.Context, s Session, page int) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "client:DownlinePage")
	defer span.End()

	fail := func(kind FailureKind, payload map[string]any, err error) ([]map[string]any, error) {
		span.SetStatus(codes.Error, kind.String())
		return nil, &Error{Kind: kind, Site: s.APIURL, Payload: payload, Err: err}
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"module":        downlineModule,
			"level":         "1",
			"pageIndex":     strconv.Itoa(page),
			"merchantId":    s.MerchantID,
			"domainId":      "0",
			"accessId":      s.AccessID,
			"accessToken":   s.Token,
			"walletIsAdmin": "true",
		}).
		Post(s.APIURL)
	if err != nil {
		return fail(KindSyncRequest, nil, err)
	}
	if res.IsError() {
		return fail(KindSyncRequest, nil, fmt.Errorf("status %s", res.Status()))
	}

	var payload map[string]any
	err = json.Unmarshal(res.Body(), &payload)
	if err != nil {
		return fail(KindSyncDecode, nil, err)
	}
	if status, _ := payload["status"].(string); status != statusSuccess {
		return fail(KindSyncRejected, payload, nil)
	}

	data, _ := payload["data"].(map[string]any)
	return recordList(data, "downlines"), nil
}
