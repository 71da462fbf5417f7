package subscription

import (
	"net/mail"
	"strings"
)

// SubmitDTO is the subscribe form payload. Website is a honeypot field
// hidden from real users; any value there means a bot filled the form.
type SubmitDTO struct {
	Email      string   `json:"email"`
	Postcode   string   `json:"postcode"`
	Interests  []string `json:"interests"`
	Newsletter string   `json:"newsletter"`
	CFToken    string   `json:"cfToken"`
	Website    string   `json:"website"`
}

// Interests is the closed vocabulary the signup form offers. Submissions
// carrying anything outside this list are rejected.
var Interests = []string{
	"Art",
	"Food & Drink",
	"Live Music",
	"Workshops",
	"Comedy",
	"Markets",
	"Families",
	"Date Night",
	"Solo Friendly",
}

var interestsByKey = func() map[string]string {
	m := make(map[string]string, len(Interests))
	for _, it := range Interests {
		m[strings.ToLower(it)] = it
	}
	return m
}()

// ValidEmail reports whether addr is a plain RFC 5322 address with a
// dotted domain. Display names ("A <a@b.c>") are not accepted.
func ValidEmail(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	if err != nil || parsed.Address != addr {
		return false
	}
	at := strings.LastIndex(addr, "@")
	return at > 0 && strings.Contains(addr[at+1:], ".")
}

// Validate normalizes the DTO in place and returns the first error per
// field, keyed by the JSON field name. An empty map means valid.
func (dto *SubmitDTO) Validate() map[string]string {
	details := make(map[string]string)

	dto.Email = strings.ToLower(strings.TrimSpace(dto.Email))
	if dto.Email == "" {
		details["email"] = "email is required"
	} else if !ValidEmail(dto.Email) {
		details["email"] = "not a valid email address"
	}

	if normalized, reason := ValidatePostcode(dto.Postcode); reason != "" {
		details["postcode"] = reason
	} else {
		dto.Postcode = normalized
	}

	canonical, reason := canonicalizeInterests(dto.Interests)
	if reason != "" {
		details["interests"] = reason
	} else {
		dto.Interests = canonical
	}

	dto.Newsletter = strings.ToLower(strings.TrimSpace(dto.Newsletter))

	if strings.TrimSpace(dto.CFToken) == "" {
		details["cfToken"] = "captcha token is required"
	}

	return details
}

// canonicalizeInterests maps each entry onto the vocabulary
// case-insensitively, dropping duplicates but keeping submission order.
func canonicalizeInterests(raw []string) ([]string, string) {
	if len(raw) == 0 {
		return nil, "pick at least one interest"
	}
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, it := range raw {
		canonical, ok := interestsByKey[strings.ToLower(strings.TrimSpace(it))]
		if !ok {
			return nil, "unknown interest: " + strings.TrimSpace(it)
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	return out, ""
}
