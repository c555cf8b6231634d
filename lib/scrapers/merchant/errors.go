package merchant

import (
	"errors"
	"fmt"
)

// FailureKind labels every way a site can fail to be harvested. The
// kinds stay independently countable so operators can tell a captcha
// wall (no merchant id in the markup) apart from rejected credentials
// or a dead API.
type FailureKind int

const (
	// the base page could not be fetched at all
	KindFetch FailureKind = iota
	// the base page came back with an empty body
	KindEmptyPage
	// the merchant id marker is absent from the markup, typically a
	// captcha wall that never renders the real page
	KindMerchantIDNotFound
	// the login endpoint could not be reached or answered non-2xx
	KindLoginRequest
	// the login endpoint answered, but not with JSON
	KindLoginDecode
	// the login endpoint answered with a non-success status; bad
	// credentials and bad merchant ids both land here, the payload
	// message text is the only way to tell them apart
	KindLoginRejected
	// login succeeded but the session fields were missing
	KindMalformedSession
	// the sync endpoint could not be reached or answered non-2xx
	KindSyncRequest
	// the sync endpoint answered, but not with JSON
	KindSyncDecode
	// the sync endpoint answered with a non-success status
	KindSyncRejected
)

func (k FailureKind) String() string {
	switch k {
	case KindFetch:
		return "fetch_failed"
	case KindEmptyPage:
		return "empty_page"
	case KindMerchantIDNotFound:
		return "merchant_id_not_found"
	case KindLoginRequest:
		return "login_request_failed"
	case KindLoginDecode:
		return "login_response_not_json"
	case KindLoginRejected:
		return "login_rejected"
	case KindMalformedSession:
		return "malformed_session"
	case KindSyncRequest:
		return "sync_request_failed"
	case KindSyncDecode:
		return "sync_response_not_json"
	case KindSyncRejected:
		return "sync_rejected"
	}
	return "unknown"
}

// Error is the failure type returned by every scraping operation in
// this package. Rejection kinds carry the decoded response payload for
// diagnosis.
type Error struct {
	Kind    FailureKind
	Site    string
	Payload map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Site, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Site, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Kind extracts the failure kind from an error returned by this
// package.
func Kind(err error) (FailureKind, bool) {
	var merr *Error
	if errors.As(err, &merr) {
		return merr.Kind, true
	}
	return 0, false
}
