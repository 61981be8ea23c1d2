// Package webhook exposes IAttom over HTTP: the WhatsApp Cloud API webhook,
// liveness and metrics endpoints, and the generated files.
//
// A POST delivery is acknowledged as soon as its body is read. Messages are
// dispatched afterwards in per-contact lanes, so replies to one contact keep
// their order while different contacts are served concurrently.
package webhook
