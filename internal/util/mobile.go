package util

import "strings"

// Ordered prefix rewrites applied to a stripped mobile number: each entry
// removes `drop` leading characters when the number starts with `prefix`.
var mobilePrefixRules = []struct {
	prefix string
	drop   int
}{
	{"0092", 4},
	{"092", 3},
	{"03", 1},
	{"9203", 3},
	{"9292", 4},
	{"92210", 5},
	{"9221", 4},
	{"92420", 5},
	{"9242", 4},
}

var mobileStripper = strings.NewReplacer(" ", "", "+", "", "-", "", "/", "", ",", "", ".", "")

// FilterMobileNumber normalises a Pakistani mobile number to the 12-digit
// international form 923XXXXXXXXX. It returns "" when the input cannot be
// normalised to that form.
func FilterMobileNumber(number string) string {
	n := mobileStripper.Replace(number)
	for _, rule := range mobilePrefixRules {
		if strings.HasPrefix(n, rule.prefix) {
			n = n[rule.drop:]
		}
	}
	if !strings.HasPrefix(n, "92") {
		n = "92" + n
	}
	if len(n) != 12 || !strings.HasPrefix(n, "923") {
		return ""
	}
	return n
}

// MobileNumberForLog renders a normalised number as "92 3XXXXXXXXX" for the
// sent log; when normalisation failed the raw input is kept.
func MobileNumberForLog(raw, normalised string) string {
	if strings.HasPrefix(normalised, "923") {
		return "92 " + normalised[2:]
	}
	return raw
}
