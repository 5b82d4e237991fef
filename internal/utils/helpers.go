package utils

import "net/url"

// MakeMap creates and returns a map[string]string containing a single key-value pair.
func MakeMap(key, value string) map[string]string {
	return map[string]string{key: value}
}

// RedactURL returns u as a string with the values of the given query keys
// masked. API keys travel in the query string of the Translink and
// OneBusAway APIs and must stay out of logs and Sentry events.
func RedactURL(u *url.URL, keys ...string) string {
	q := u.Query()
	redacted := false
	for _, k := range keys {
		if q.Get(k) != "" {
			q.Set(k, "xxxxx")
			redacted = true
		}
	}
	if !redacted {
		return u.String()
	}
	c := *u
	c.RawQuery = q.Encode()
	return c.String()
}
