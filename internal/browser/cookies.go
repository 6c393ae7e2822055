package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Cookie is one entry of a captured cookie jar.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// rawCookie accepts both the DevTools export ("expires") and the browser
// extension export ("expirationDate") shapes.
type rawCookie struct {
	Cookie
	ExpirationDate float64 `json:"expirationDate,omitempty"`
}

// ParseCookies decodes a serialized cookie jar. An empty jar is valid and
// yields no cookies.
func ParseCookies(jar string) ([]Cookie, error) {
	jar = strings.TrimSpace(jar)
	if jar == "" {
		return nil, nil
	}

	var raw []rawCookie
	if err := json.Unmarshal([]byte(jar), &raw); err != nil {
		return nil, fmt.Errorf("decode cookie jar: %w", err)
	}

	out := make([]Cookie, 0, len(raw))
	for i, rc := range raw {
		c := rc.Cookie
		if c.Name == "" {
			return nil, fmt.Errorf("cookie %d has no name", i)
		}
		if c.Domain == "" {
			return nil, fmt.Errorf("cookie %q has no domain", c.Name)
		}
		if c.Path == "" {
			c.Path = "/"
		}
		if c.Expires == 0 && rc.ExpirationDate > 0 {
			c.Expires = rc.ExpirationDate
		}
		c.SameSite = normalizeSameSite(c.SameSite)
		out = append(out, c)
	}
	return out, nil
}

func normalizeSameSite(v string) string {
	switch strings.ToLower(v) {
	case "strict":
		return "Strict"
	case "none", "no_restriction":
		return "None"
	case "lax":
		return "Lax"
	default:
		return ""
	}
}
