package util

import (
	"errors"
	"net/mail"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hexOnly = regexp.MustCompile(`^[0-9a-f]+$`)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestGenerateUniqueID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := GenerateUniqueID(64)
		assert.Len(t, id, 64)
		assert.Regexp(t, hexOnly, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100, "ids must not repeat")

	assert.Len(t, GenerateUniqueID(16), 16)
	assert.Len(t, GenerateUniqueID(7), 7, "odd lengths are honoured")
	assert.Empty(t, GenerateUniqueID(0))
	assert.Empty(t, GenerateUniqueID(-3))
}

func TestGenerateUniqueID_FallbackSource(t *testing.T) {
	orig := randomSource
	randomSource = failingReader{}
	t.Cleanup(func() { randomSource = orig })

	for range 20 {
		id := GenerateUniqueID(64)
		assert.Len(t, id, 64)
		assert.Regexp(t, hexOnly, id)
	}
}

func TestFilterMobileNumber(t *testing.T) {
	tests := map[string]string{
		"0300-1234567":      "923001234567",
		"+92 300 1234567":   "923001234567",
		"0092 300 1234567":  "923001234567",
		"092-300-1234567":   "923001234567",
		"92 03001234567":    "923001234567",
		"3001234567":        "923001234567",
		"0300.123.4567":     "923001234567",
		"021-1234567":       "",
		"042 1234 5678":     "",
		"12345":             "",
		"":                  "",
		"03001234567890123": "",
	}

	for in, want := range tests {
		assert.Equal(t, want, FilterMobileNumber(in), "input %q", in)
	}
}

func TestMobileNumberForLog(t *testing.T) {
	assert.Equal(t, "92 3001234567", MobileNumberForLog("0300-1234567", "923001234567"))
	assert.Equal(t, "021-1234567", MobileNumberForLog("021-1234567", ""))
}

func TestParseAddress(t *testing.T) {
	assert.Nil(t, ParseAddress(" invalid-email "))
	assert.Nil(t, ParseAddress("  "))
	assert.Equal(t, &mail.Address{Address: "valid@email.com"}, ParseAddress(" VAlid@EMAIl.com "))
	assert.Equal(t, &mail.Address{Address: "valid@email.com", Name: "With Name"},
		ParseAddress(" VAlid@EMAIl.com:With Name "))
	assert.Equal(t, &mail.Address{Address: "valid@email.com"}, ParseAddress(" VAlid@EMAIl.com: "))
}

func TestParseAddressList(t *testing.T) {
	assert.Empty(t, ParseAddressList(" invalid-email; invalid-email:NAME "))
	assert.Empty(t, ParseAddressList(""))

	got := ParseAddressList(" invaliD; VAlid@EMAil.com:; ; other@EMAIl.com:With Name; ;; ")
	assert.Equal(t, []*mail.Address{
		{Address: "valid@email.com"},
		{Address: "other@email.com", Name: "With Name"},
	}, got)
}
