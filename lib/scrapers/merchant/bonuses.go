package merchant

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/codes"
)

// SyncBonuses retrieves the raw bonus and promotion records for an
// authenticated session. The two top-level arrays are concatenated;
// either one missing or not list-shaped just means that side is empty,
// the platform drifts its schema in non-critical fields.
func (c *Client) SyncBonuses(ctx context.Context, s Session) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "client:SyncBonuses")
	defer span.End()

	fail := func(kind FailureKind, payload map[string]any, err error) ([]map[string]any, error) {
		span.SetStatus(codes.Error, kind.String())
		return nil, &Error{Kind: kind, Site: s.APIURL, Payload: payload, Err: err}
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"module":      syncModule,
			"merchantId":  s.MerchantID,
			"accessId":    s.AccessID,
			"accessToken": s.Token,
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
	records := recordList(data, "bonus")
	records = append(records, recordList(data, "promotions")...)
	return records, nil
}
