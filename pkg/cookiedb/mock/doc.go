// Package mock implements an in-memory CookieDB for development and tests:
// tables with schema enforcement, document CRUD, query evaluation,
// foreign-key expansion and a user registry, reachable either through an
// http.Handler speaking the wire protocol or directly as a cookiedb.Backend.
// State lives in process memory and is lost on exit.
package mock
