package git

import "net/url"

// AuthenticatedURL embeds an access token into an http(s) remote URL so
// private repositories can be cloned and fetched. An empty token or a
// non-http scheme returns the URL unchanged.
func AuthenticatedURL(raw, token string) string {
	if token == "" {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return raw
	}
	u.User = url.User(token)
	return u.String()
}
