// Package generation defines the boundary between the job runner and the
// external content producers: an LLM that writes quiz questions, a worker
// that synthesizes deep-dive audio, and the source text of a notebook.
package generation
