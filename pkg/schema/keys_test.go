package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Waffles", "waffles"},
		{"  Grandma Rose  ", "grandma_rose"},
		{"PlayStation controller", "playstation_controller"},
		{"Abby's backyard", "abby_s_backyard"},
		{"the--old---oak", "the_old_oak"},
		{"!!!", ""},
		{"", ""},
		{"Mr. O'Malley Jr.", "mr_o_malley_jr"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeKey(tt.in), "NormalizeKey(%q)", tt.in)
	}
}

func TestNormalizeKeyIdempotent(t *testing.T) {
	for _, in := range []string{"Waffles", "Grandma Rose", "a b c", "x__y"} {
		once := NormalizeKey(in)
		assert.Equal(t, once, NormalizeKey(once))
	}
}
