package game

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxNicknameLen 按 rune 计数
	MaxNicknameLen  = 16
	DefaultNickname = "sorcerer"
)

// SanitizeNickname 规范化玩家昵称用于显示
func SanitizeNickname(raw string) string {
	s := norm.NFC.String(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > MaxNicknameLen {
		s = strings.TrimSpace(string([]rune(s)[:MaxNicknameLen]))
	}
	if s == "" {
		return DefaultNickname
	}
	return s
}
