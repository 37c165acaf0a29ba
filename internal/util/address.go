package util

import (
	"net/mail"
	"strings"
)

// ParseAddressList parses "a@b.com: Name; c@d.com" style lists. Entries are
// separated by ';', an optional display name follows ':'. Invalid addresses
// are skipped and addresses are lower-cased.
func ParseAddressList(list string) []*mail.Address {
	var out []*mail.Address
	for _, entry := range strings.Split(strings.Trim(strings.TrimSpace(list), ";"), ";") {
		if addr := ParseAddress(entry); addr != nil {
			out = append(out, addr)
		}
	}
	return out
}

// ParseAddress parses a single "a@b.com: Name" entry, returning nil when invalid.
func ParseAddress(entry string) *mail.Address {
	email, name, _ := strings.Cut(entry, ":")
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return nil
	}
	return &mail.Address{Name: strings.TrimSpace(name), Address: email}
}
