package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Apa Itu MalakaTech", "apa itu malakatech"},
		{"strips punctuation", "apa itu malakatech?!", "apa itu malakatech"},
		{"punctuation between words becomes a space", "harga,layanan;jadwal", "harga layanan jadwal"},
		{"collapses whitespace", "  halo \t\n  dunia  ", "halo dunia"},
		{"keeps digits and underscore", "paket_2 ada 24/7", "paket_2 ada 24 7"},
		{"keeps non-latin letters", "Привет, МИР", "привет мир"},
		{"keeps precomposed letters", "café", "café"},
		{"keeps combining marks", "Cafe\u0301 ok", "cafe\u0301 ok"},
		{"empty", "", ""},
		{"punctuation only", "?!...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"Apa itu MalakaTech?",
		"  Layanan   APA saja!!  ",
		"email: support@malakatech.id",
		"Ünïcödé — TEXT… with “quotes”",
		"tab\tand\nnewline",
		"",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"apa", "itu", "malakatech"}, Tokens("apa itu malakatech"))
	assert.Empty(t, Tokens(""))
	assert.Equal(t, []string{"halo", "dunia"}, NormalizeTokens("Halo, Dunia!"))
}
