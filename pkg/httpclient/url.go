package httpclient

import (
	"net/url"
	"strings"
)

const (
	requestTokenParam = "token"
	publicTokenParam  = "access_token"
)

func isAbsoluteURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// requestURL builds the URL a call is sent to. Base and path are joined as-is;
// the token goes in unescaped as token=<t>.
func (a *Adapter) requestURL(path string) string {
	target := path
	if !isAbsoluteURL(path) {
		target = a.cfg.BaseURL + path
	}
	if a.cfg.Token == "" {
		return target
	}
	return appendQuery(target, requestTokenParam, a.cfg.Token)
}

// ComposeURL returns the fully qualified URL for path, with the query-escaped
// token as access_token=<t>. It is meant for links handed to other consumers
// (downloads, redirects) rather than for calls made through the adapter.
func (a *Adapter) ComposeURL(path string) string {
	if !isAbsoluteURL(path) {
		target := a.cfg.BaseURL + path
		if a.cfg.Token == "" {
			return target
		}
		return appendQuery(target, publicTokenParam, url.QueryEscape(a.cfg.Token))
	}

	if a.cfg.Token == "" {
		return path
	}
	u, err := url.Parse(path)
	if err != nil {
		return appendQuery(path, publicTokenParam, url.QueryEscape(a.cfg.Token))
	}
	param := publicTokenParam + "=" + url.QueryEscape(a.cfg.Token)
	if u.RawQuery == "" {
		u.RawQuery = param
	} else {
		u.RawQuery += "&" + param
	}
	return u.String()
}

func appendQuery(target, key, value string) string {
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + key + "=" + value
}
