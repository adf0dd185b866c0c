// Package coach turns recorded practice landmarks into coaching feedback.
//
// A completed pose is encoded as CSV and sent to the remote pose classifier,
// which answers with the detected gesture and spoken error codes. The codes
// are resolved against the embedded gesture error catalog, then a generative
// model writes the feedback and a text-to-speech service voices it. Failures
// at any of these boundaries surface as a Result carrying Error rather than
// a Go error, so one bad pose never aborts a practice run.
package coach
