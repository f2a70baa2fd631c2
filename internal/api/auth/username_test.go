package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/minimarket-auth/internal/types"
)

func TestNormalizeUsername(t *testing.T) {
	cases := map[string]string{
		"  Admin ":         "admin",
		"Bob":              "bob",
		"john.doe_99-x":    "john.doe_99-x",
		"hello world!":     "helloworld",
		"ÉMILE":            "mile",
		"user@demo.com":    "userdemo.com",
		"   ":              "",
		"🙂":                "",
		"\tTab\nNewline\r": "tabnewline",
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeUsername(raw), "raw=%q", raw)
	}
}

func TestNormalizeUsernameIdempotent(t *testing.T) {
	inputs := []string{"  Admin ", "A.B_C-D", "ümlaut", "x y z", "", "....", "ÀÉÎ123", "user@demo.com"}
	for _, in := range inputs {
		once := NormalizeUsername(in)
		assert.Equal(t, once, NormalizeUsername(once), "input=%q", in)
	}
}

func TestSyntheticEmail(t *testing.T) {
	assert.Equal(t, "bob@demo.com", SyntheticEmail("bob", ""))
	assert.Equal(t, "bob@shop.test", SyntheticEmail("bob", "shop.test"))
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, types.RoleAdmin, RoleFor("admin"))
	assert.Equal(t, types.RoleUser, RoleFor("administrator"))
	assert.Equal(t, types.RoleUser, RoleFor("bob"))
}

func BenchmarkNormalizeUsername(b *testing.B) {
	for i := 0; i < b.N; i++ {
		NormalizeUsername("  Some.Mixed_Case-User 123 ")
	}
}
