package activity

import "strings"

// CallbackContextName marks an object context as an interactive
// message callback.
const CallbackContextName = "interactive_message_callback"

// EncodeCallback packs a callback identifier and its response URL into
// the "<id>#<url>" wire contract used by object contexts.
func EncodeCallback(callbackID, responseURL string) *ObjectContext {
	return &ObjectContext{
		Content: callbackID + "#" + responseURL,
		Name:    CallbackContextName,
		Type:    "Object",
	}
}

// DecodeCallback splits a context content string back into callback id
// and response URL. The split happens on the first '#' only, so a
// response URL containing '#' survives the round trip intact.
func DecodeCallback(content string) (callbackID, responseURL string, ok bool) {
	callbackID, responseURL, ok = strings.Cut(content, "#")
	return callbackID, responseURL, ok
}
