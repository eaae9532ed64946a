package platform

import "strings"

// benignConnectErrors enumerates, per platform, the transport error
// codes that actually mean success at connect time. The canonical case
// is a webhook subscription that already exists from a previous run.
var benignConnectErrors = map[string][]string{
	"sms": {
		"TYPE_ENDPOINT_DUPLICATE",
		"HTTP_CODE_ERROR",
	},
	"slack":    {},
	"telegram": {},
}

// IsBenignConnectError reports whether err carries one of the
// platform's enumerated benign codes.
func IsBenignConnectError(platformName string, err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range benignConnectErrors[platformName] {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
