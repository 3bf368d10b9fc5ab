// Package callbacks decodes inline button data produced by telebot.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Telebot prefixes data of buttons built with a unique key with a form feed.
const uniquePrefix = "\f"

// Parse splits raw callback data encoded as \f<unique>|<payload>.
// Data without the prefix is returned as payload with an empty unique.
func Parse(data string) (string, string) {
	if !strings.HasPrefix(data, uniquePrefix) {
		return "", data
	}
	unique, payload, _ := strings.Cut(strings.TrimPrefix(data, uniquePrefix), "|")
	return strings.TrimSpace(unique), payload
}

// ParseCallbackData resolves unique and payload of cb. When telebot already
// matched a unique handler, Unique is set and Data holds the bare payload.
func ParseCallbackData(cb *tele.Callback) (string, string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	return Parse(cb.Data)
}

// CallbackKey returns the unique of the pressed button.
func CallbackKey(c tele.Context) string {
	k, _ := ParseCallbackData(c.Callback())
	return k
}

// CallbackPayload returns the data attached to the pressed button.
func CallbackPayload(c tele.Context) string {
	_, p := ParseCallbackData(c.Callback())
	return p
}
