package board

import (
	"bytes"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// BlockType describes an anti-bot page served in place of the real one.
type BlockType string

const (
	BlockNone     BlockType = ""
	BlockWAF      BlockType = "waf"
	BlockCaptcha  BlockType = "captcha"
	BlockRedirect BlockType = "meta_refresh"
)

// blockBodyLimit bounds how much of a page is scanned for block markers.
const blockBodyLimit = 4000

// captchaWidgets matches challenge widgets, not pages that merely mention
// the word.
const captchaWidgets = `.g-recaptcha, .h-captcha, .cf-turnstile, [data-sitekey], ` +
	`iframe[src*="captcha"], form[action*="captcha"], img[src*="captcha"], input[name*="captcha"]`

// DetectBlock reports whether a response is a challenge, captcha or bounce
// page rather than board content. resp may be nil and body may be empty
// when only one of them is available.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp != nil && blockedByHeader(resp.StatusCode, resp.Header) {
		return true, BlockWAF
	}
	if len(body) == 0 {
		return false, BlockNone
	}

	head := body
	if len(head) > blockBodyLimit {
		head = head[:blockBodyLimit]
	}
	lower := bytes.ToLower(head)

	if bytes.Contains(lower, []byte("checking your browser")) ||
		bytes.Contains(lower, []byte("request rejected")) ||
		bytes.Contains(lower, []byte("the requested url was rejected")) {
		return true, BlockWAF
	}
	if bytes.Contains(lower, []byte("captcha")) && hasCaptchaWidget(body) {
		return true, BlockCaptcha
	}
	if len(body) < 2000 && bytes.Contains(lower, []byte(`http-equiv="refresh"`)) {
		return true, BlockRedirect
	}
	return false, BlockNone
}

// blockedByHeader recognises CDN challenge responses. cf-ray alone is on
// every proxied response, so it only counts on a refusal status.
func blockedByHeader(status int, h http.Header) bool {
	if h.Get("cf-mitigated") != "" {
		return true
	}
	refused := status == http.StatusForbidden || status == http.StatusServiceUnavailable
	return refused && h.Get("cf-ray") != ""
}

func hasCaptchaWidget(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(captchaWidgets).Length() > 0
}
