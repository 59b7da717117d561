package crypto

import (
	"regexp"
	"strings"
)

var (
	reScript  = regexp.MustCompile(`(?is)<script\b.*?</script\s*>`)
	reIframe  = regexp.MustCompile(`(?is)<iframe\b.*?</iframe\s*>`)
	reJSProto = regexp.MustCompile(`(?i)javascript:`)
	reOnAttr  = regexp.MustCompile(`(?i)\bon\w+\s*=`)
)

// SanitizeMessage strips script/iframe blocks, javascript: URIs and inline
// event-handler attributes from free text. This is a denylist filter, not an
// HTML parser; render-time escaping is still required.
func SanitizeMessage(message string) string {
	if message == "" {
		return ""
	}
	out := reScript.ReplaceAllString(message, "")
	out = reIframe.ReplaceAllString(out, "")
	out = reJSProto.ReplaceAllString(out, "")
	out = reOnAttr.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
