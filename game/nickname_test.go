package game

import "testing"

func TestSanitizeNickname(t *testing.T) {
	cases := map[string]string{
		"":                        DefaultNickname,
		"   ":                     DefaultNickname,
		"  merlin ":               "merlin",
		"bad\x00name\n":           "badname",
		"e\u0301lan":              "\u00e9lan",
		"abcdefghijklmnopqrstuvw": "abcdefghijklmnop",
	}
	for in, want := range cases {
		if got := SanitizeNickname(in); got != want {
			t.Errorf("SanitizeNickname(%q) = %q, want %q", in, got, want)
		}
	}
}
