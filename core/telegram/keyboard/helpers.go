// Package keyboard builds inline keyboards.
package keyboard

import (
	"fmt"

	tele "gopkg.in/telebot.v4"
)

// MaxCallbackData is the Telegram limit for callback_data in bytes.
const MaxCallbackData = 64

// InlineBtn describes a convenience wrapper for inline button properties.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// CallbackData returns the encoded callback_data of the button.
func (b InlineBtn) CallbackData() string {
	if b.Unique == "" {
		return b.Data
	}
	return "\f" + b.Unique + "|" + b.Data
}

// Validate reports an error when the encoded data exceeds the Telegram limit.
func (b InlineBtn) Validate() error {
	if n := len(b.CallbackData()); n > MaxCallbackData {
		return fmt.Errorf("keyboard: callback data for %q is %d bytes, limit %d", b.Text, n, MaxCallbackData)
	}
	return nil
}

// Choices builds buttons whose label and payload are the option itself.
func Choices(unique string, options []string) []InlineBtn {
	out := make([]InlineBtn, len(options))
	for i, o := range options {
		out[i] = InlineBtn{Text: o, Unique: unique, Data: o}
	}
	return out
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// InlineButtonsNPerRow splits a flat list of buttons into rows with up to n buttons per row.
// If n <= 1 every button gets its own row.
func InlineButtonsNPerRow(buttons []InlineBtn, n int) *tele.ReplyMarkup {
	return InlineButtonsRows(Chunk(buttons, n)...)
}

// Chunk splits buttons into rows of at most n.
func Chunk(buttons []InlineBtn, n int) [][]InlineBtn {
	if n < 1 {
		n = 1
	}
	rows := make([][]InlineBtn, 0, (len(buttons)+n-1)/n)
	for i := 0; i < len(buttons); i += n {
		end := i + n
		if end > len(buttons) {
			end = len(buttons)
		}
		rows = append(rows, buttons[i:end])
	}
	return rows
}
