package models

import (
	"sort"
	"strings"
	"time"
)

type ShippingAddress struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"userId"`
	Line1      string    `json:"address_line1"`
	Line2      string    `json:"address_line2,omitempty"`
	City       string    `json:"city"`
	Province   string    `json:"province"`
	PostalCode string    `json:"postal_code"`
	Country    string    `json:"country"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MissingFields returns the names of required fields that are blank.
func (a *ShippingAddress) MissingFields() []string {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"address_line1", a.Line1},
		{"city", a.City},
		{"province", a.Province},
		{"postal_code", a.PostalCode},
		{"country", a.Country},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// addressSetters is the allow-list of fields a patch may change. Columns not
// listed here (user_id, is_default, id) are never writable through a patch.
var addressSetters = map[string]func(a *ShippingAddress, v string){
	"address_line1": func(a *ShippingAddress, v string) { a.Line1 = v },
	"address_line2": func(a *ShippingAddress, v string) { a.Line2 = v },
	"city":          func(a *ShippingAddress, v string) { a.City = v },
	"province":      func(a *ShippingAddress, v string) { a.Province = v },
	"postal_code":   func(a *ShippingAddress, v string) { a.PostalCode = v },
	"country":       func(a *ShippingAddress, v string) { a.Country = v },
}

// AddressPatchFields lists the patchable field names in stable order.
func AddressPatchFields() []string {
	names := make([]string, 0, len(addressSetters))
	for name := range addressSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPatch applies the allow-listed fields of patch to a. It returns the name
// of the first unknown field and false when the patch touches anything else;
// in that case a is left unchanged.
func (a *ShippingAddress) ApplyPatch(patch map[string]string) (string, bool) {
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := addressSetters[k]; !ok {
			return k, false
		}
	}
	for _, k := range keys {
		addressSetters[k](a, patch[k])
	}
	return "", true
}
