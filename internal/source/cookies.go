package source

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CookieEntry is one normalized cookie extracted from SOURCE_COOKIES_JSON.
type CookieEntry struct {
	Name   string
	Value  string
	Domain string
	Path   string
}

// CookieBundle is the parsed, normalized contents of SOURCE_COOKIES_JSON.
type CookieBundle struct {
	Entries        []CookieEntry
	DomainRewrites int // count of x.com/.x.com -> .twitter.com normalizations
}

// ParseCookieBundle parses SOURCE_COOKIES_JSON (spec.md §6): a JSON array
// where each entry is either a serialized "Name=Value; Domain=…; Path=…;"
// string or an object {name|key, value, domain, path?}.
func ParseCookieBundle(raw string) (CookieBundle, error) {
	var rawEntries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &rawEntries); err != nil {
		return CookieBundle{}, fmt.Errorf("parse cookie bundle: %w", err)
	}

	var bundle CookieBundle
	for i, re := range rawEntries {
		entry, err := parseCookieEntry(re)
		if err != nil {
			return CookieBundle{}, fmt.Errorf("cookie entry %d: %w", i, err)
		}
		if domain, rewritten := normalizeDomain(entry.Domain); rewritten {
			entry.Domain = domain
			bundle.DomainRewrites++
		}
		bundle.Entries = append(bundle.Entries, entry)
	}

	if err := bundle.requireCookie("auth_token"); err != nil {
		return CookieBundle{}, err
	}
	if err := bundle.requireCookie("ct0"); err != nil {
		return CookieBundle{}, err
	}
	return bundle, nil
}

func (b CookieBundle) requireCookie(name string) error {
	for _, e := range b.Entries {
		if e.Name == name {
			return nil
		}
	}
	return fmt.Errorf("cookie bundle missing required cookie %q", name)
}

func parseCookieEntry(raw json.RawMessage) (CookieEntry, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseCookieString(s)
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return CookieEntry{}, fmt.Errorf("entry is neither a string nor an object: %w", err)
	}

	name, _ := obj["name"].(string)
	if name == "" {
		name, _ = obj["key"].(string)
	}
	value, _ := obj["value"].(string)
	domain, _ := obj["domain"].(string)
	path, _ := obj["path"].(string)
	if name == "" {
		return CookieEntry{}, fmt.Errorf("object cookie entry missing name/key")
	}
	if path == "" {
		path = "/"
	}
	return CookieEntry{Name: name, Value: value, Domain: domain, Path: path}, nil
}

// parseCookieString parses "Name=Value; Domain=…; Path=…;" style strings.
func parseCookieString(s string) (CookieEntry, error) {
	parts := strings.Split(s, ";")
	if len(parts) == 0 {
		return CookieEntry{}, fmt.Errorf("empty cookie string")
	}

	entry := CookieEntry{Path: "/"}
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		var val string
		if len(kv) == 2 {
			val = strings.TrimSpace(kv[1])
		}

		if i == 0 {
			entry.Name = key
			entry.Value = val
			continue
		}
		switch strings.ToLower(key) {
		case "domain":
			entry.Domain = val
		case "path":
			entry.Path = val
		}
	}
	if entry.Name == "" {
		return CookieEntry{}, fmt.Errorf("cookie string missing name: %q", s)
	}
	return entry, nil
}

func normalizeDomain(domain string) (string, bool) {
	if domain == "x.com" || domain == ".x.com" {
		return ".twitter.com", true
	}
	return domain, false
}

// authPair is a (auth_token, ct0) credential pair extracted from a cookie
// bundle, as used for header construction per spec.md §4.2.
type authPair struct {
	AuthToken string
	CT0       string
}

// extractAuthPairs collects every distinct (auth_token, ct0) pair observed
// across the cookie bundle's domains, plus the flat name-indexed pair,
// de-duplicating identical pairs. Order is stable (first-seen wins) so
// rotation is deterministic across runs.
func extractAuthPairs(bundle CookieBundle) []authPair {
	byDomain := map[string]*authPair{}
	order := []string{}
	flat := &authPair{}

	for _, e := range bundle.Entries {
		switch e.Name {
		case "auth_token":
			if e.Domain != "" {
				p := byDomain[e.Domain]
				if p == nil {
					p = &authPair{}
					byDomain[e.Domain] = p
					order = append(order, e.Domain)
				}
				p.AuthToken = e.Value
			}
			flat.AuthToken = e.Value
		case "ct0":
			if e.Domain != "" {
				p := byDomain[e.Domain]
				if p == nil {
					p = &authPair{}
					byDomain[e.Domain] = p
					order = append(order, e.Domain)
				}
				p.CT0 = e.Value
			}
			flat.CT0 = e.Value
		}
	}

	seen := map[authPair]bool{}
	var pairs []authPair
	for _, d := range order {
		p := *byDomain[d]
		if p.AuthToken == "" && p.CT0 == "" {
			continue
		}
		if !seen[p] {
			seen[p] = true
			pairs = append(pairs, p)
		}
	}
	if flat.AuthToken != "" || flat.CT0 != "" {
		if !seen[*flat] {
			pairs = append(pairs, *flat)
		}
	}
	return pairs
}

// otherCookieHeader renders every non auth_token/ct0 cookie as a
// "name=value" fragment for inclusion in the Cookie header.
func otherCookieHeader(bundle CookieBundle) string {
	var parts []string
	for _, e := range bundle.Entries {
		if e.Name == "auth_token" || e.Name == "ct0" {
			continue
		}
		parts = append(parts, e.Name+"="+e.Value)
	}
	return strings.Join(parts, "; ")
}

// guestToken derives a guest token from the cookie bundle if one is present
// under the conventional "gt" cookie name.
func guestToken(bundle CookieBundle) string {
	for _, e := range bundle.Entries {
		if e.Name == "gt" {
			return e.Value
		}
	}
	return ""
}
