// Package endpoint parses obsws:// connection URIs.
package endpoint

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	obserrors "github.com/tsarna/obsws/pkg/obsws/errors"
)

const (
	// Scheme is the URI scheme identifying the obs-websocket dialect.
	Scheme = "obsws"

	// DefaultPort is the port obs-websocket listens on out of the box.
	DefaultPort = 4455
)

// Endpoint is a parsed obsws:// URI.
//
// The password is taken from the first path segment, so
// obsws://localhost:4455/hunter2/extra yields Password "hunter2" and
// ResourcePath "extra". When the path is empty, a userinfo password
// (obsws://:hunter2@localhost) is used instead.
type Endpoint struct {
	Scheme       string
	Host         string
	Port         int
	ResourcePath string
	Password     string
	RawQuery     string
}

// Parse parses uri into an Endpoint. Any failure wraps ErrInvalidURI.
func Parse(uri string) (*Endpoint, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", obserrors.ErrInvalidURI, err)
	}

	if !strings.EqualFold(u.Scheme, Scheme) {
		return nil, fmt.Errorf("%w: scheme %q is not %q", obserrors.ErrInvalidURI, u.Scheme, Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", obserrors.ErrInvalidURI)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("%w: bad port %q", obserrors.ErrInvalidURI, p)
		}
	}

	ep := &Endpoint{
		Scheme:   strings.ToLower(u.Scheme),
		Host:     host,
		Port:     port,
		RawQuery: u.RawQuery,
	}

	segments := splitPath(u.EscapedPath())
	if len(segments) > 0 {
		password, err := url.PathUnescape(segments[0])
		if err != nil {
			return nil, fmt.Errorf("%w: bad password segment: %v", obserrors.ErrInvalidURI, err)
		}
		ep.Password = password
		ep.ResourcePath = strings.Join(segments[1:], "/")
	} else if u.User != nil {
		if password, ok := u.User.Password(); ok {
			ep.Password = password
		} else {
			ep.Password = u.User.Username()
		}
	}

	return ep, nil
}

func splitPath(escaped string) []string {
	trimmed := strings.Trim(escaped, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Address returns host:port.
func (e *Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// WebSocketURL returns the ws:// URL to dial. The password is never part of it.
func (e *Endpoint) WebSocketURL() string {
	u := url.URL{
		Scheme:   "ws",
		Host:     e.Address(),
		Path:     "/" + e.ResourcePath,
		RawQuery: e.RawQuery,
	}
	return u.String()
}

// HasPassword reports whether a password was supplied.
func (e *Endpoint) HasPassword() bool {
	return e.Password != ""
}

// String returns the URI with the password masked, suitable for logs.
func (e *Endpoint) String() string {
	var b strings.Builder
	b.WriteString(e.Scheme)
	b.WriteString("://")
	b.WriteString(e.Address())
	if e.Password != "" || e.ResourcePath != "" {
		b.WriteString("/")
		if e.Password != "" {
			b.WriteString("***")
		}
	}
	if e.ResourcePath != "" {
		b.WriteString("/")
		b.WriteString(e.ResourcePath)
	}
	if e.RawQuery != "" {
		b.WriteString("?")
		b.WriteString(e.RawQuery)
	}
	return b.String()
}
