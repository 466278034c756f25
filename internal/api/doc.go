// Package api serves the generation job routes over HTTP. Handlers decode
// and validate requests, call the job service as the authenticated user, and
// translate service errors into JSON error responses that never carry
// internal detail.
package api
