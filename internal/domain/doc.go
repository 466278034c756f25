// Package domain contains the core business entities of the studio: generation
// jobs, their kind-specific payloads (quiz questions and audio artifacts), the
// status lifecycle, and partial updates. It is independent of any transport,
// storage, or rendering concern.
package domain
