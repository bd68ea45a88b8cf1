package gateway

import (
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Access decides how a route treats the bearer credential.
type Access int

const (
	// AccessPublic forwards without verification. Any credential is dropped.
	AccessPublic Access = iota
	// AccessOptional verifies a credential when one is present and forwards
	// anonymously otherwise.
	AccessOptional
	// AccessProtected requires a valid credential.
	AccessProtected
)

func (a Access) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessOptional:
		return "optional"
	default:
		return "protected"
	}
}

// Forwarder delivers the (rewritten) request to a backend and fills the
// response.
type Forwarder interface {
	Forward(c *fiber.Ctx) error
}

// ForwarderFunc adapts a function to Forwarder.
type ForwarderFunc func(c *fiber.Ctx) error

// Forward implements Forwarder.
func (f ForwarderFunc) Forward(c *fiber.Ctx) error { return f(c) }

// Route maps a path prefix to a backend.
type Route struct {
	Prefix string
	Access Access
	Target Forwarder
}

type routeTable []Route

func newRouteTable(routes []Route) routeTable {
	table := make(routeTable, 0, len(routes))
	for _, r := range routes {
		r.Prefix = "/" + strings.Trim(r.Prefix, "/")
		table = append(table, r)
	}
	// longest prefix wins
	sort.SliceStable(table, func(i, j int) bool { return len(table[i].Prefix) > len(table[j].Prefix) })
	return table
}

func (t routeTable) match(path string) (Route, bool) {
	for _, r := range t {
		if path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			return r, true
		}
	}
	return Route{}, false
}
