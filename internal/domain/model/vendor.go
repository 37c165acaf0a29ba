package model

import (
	"encoding/json"
	"strings"
)

// VendorStatus represents whether a vendor may be used for sending.
type VendorStatus string

const (
	VendorStatusActive   VendorStatus = "Active"
	VendorStatusInactive VendorStatus = "Inactive"
)

// Vendor is an SMS gateway configuration row. SendCapability and
// BalanceCapability name strategies registered in the vendor registry.
type Vendor struct {
	Name              string       `json:"vendor_name"        db:"vendor_name"`
	SendCapability    string       `json:"send_capability"    db:"send_capability"`
	BalanceCapability string       `json:"balance_capability" db:"balance_capability"`
	Status            VendorStatus `json:"status"             db:"vendor_status"`
}

// Active reports whether the vendor may send.
func (v *Vendor) Active() bool {
	return v.Status == VendorStatusActive
}

// SendRequest is handed to a vendor send capability.
type SendRequest struct {
	Vendor      string
	To          string
	Body        string
	Mask        string
	Credentials Credentials
}

// Credentials is the decoded from_json blob of a recipient task.
type Credentials map[string]any

// ParseCredentials decodes a from_json string. Empty input yields empty credentials.
func ParseCredentials(fromJSON string) (Credentials, error) {
	creds := Credentials{}
	if strings.TrimSpace(fromJSON) == "" {
		return creds, nil
	}
	if err := json.Unmarshal([]byte(fromJSON), &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

// String returns the string value of key, or "" when absent or not a string.
func (c Credentials) String(key string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return ""
}

// Balance is the result of a vendor balance query.
type Balance struct {
	Vendor       string `json:"vendor_name"`
	Balance      string `json:"balance"`
	ResponseJSON string `json:"response_json"`
}
