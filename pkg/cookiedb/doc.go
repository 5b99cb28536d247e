// Package cookiedb provides a client driver for the CookieDB document
// database. The HTTP surface mirrors the CookieDB server API: every
// operation is a single POST carrying a bearer token, with results and
// errors reported through the response body. The public API centres around
// the Client type, which exposes one method per server endpoint over a
// swappable Backend so programs can run against a live server or the
// in-memory mock in pkg/cookiedb/mock without code changes.
//
// The driver enforces no timeouts and performs no retries on its own; both
// are caller concerns, configured through the transport options accepted by
// New.
package cookiedb
