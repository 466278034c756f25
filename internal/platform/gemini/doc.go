// Package gemini implements generation.QuizGenerator on Google's Gemini API.
//
// Prompts are rendered from an embedded template and the model is asked for
// a JSON response constrained by a schema, so parsing is a plain unmarshal
// followed by structural validation. Rate limits, server errors and network
// failures are retried with jittered exponential backoff; safety blocks and
// malformed responses are not.
package gemini
