package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint identifies the HTTP resource the caller wants, e.g. (localhost, 9870, /jmx).
// Routing only looks at Port; Host is kept so the direct host-network path can use it.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	Path   string // includes the raw query, if any
}

// ParseEndpoint builds an Endpoint from a scheme://host:port/path URL.
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Endpoint{}, fmt.Errorf("invalid endpoint url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Endpoint{}, fmt.Errorf("invalid endpoint url %q: scheme must be http or https", raw)
	}
	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("invalid endpoint url %q: missing host", raw)
	}

	port := 80
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, fmt.Errorf("invalid endpoint url %q: bad port %q", raw, p)
		}
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return Endpoint{Scheme: u.Scheme, Host: host, Port: port, Path: path}, nil
}

// HostURL is the URL of the endpoint as seen from the host network.
func (e Endpoint) HostURL() string {
	return fmt.Sprintf("%s://%s:%d%s", e.Scheme, hostForURL(e.Host), e.Port, e.Path)
}

// ContainerURL is the URL the in-container fetch targets: the same path on the
// container's own loopback interface.
func (e Endpoint) ContainerURL(containerPort int) string {
	return fmt.Sprintf("%s://127.0.0.1:%d%s", e.Scheme, containerPort, e.Path)
}

func (e Endpoint) String() string {
	return e.HostURL()
}

func hostForURL(host string) string {
	if strings.Contains(host, ":") {
		return "[" + host + "]"
	}
	return host
}

// Route maps an endpoint's host port to the container that serves it.
type Route struct {
	ContainerID   string `json:"container_id"`
	ContainerName string `json:"container_name"`
	HostPort      int    `json:"host_port"`
	ContainerPort int    `json:"container_port"`
}
