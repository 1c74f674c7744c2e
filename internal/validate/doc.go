// Package validate enforces upload constraints before any pipeline work.
//
// The size cap applies to bytes actually transferred, never to a
// client-declared length. Type acceptance is advisory: a video/* content
// type or a recognized video filename extension is enough to proceed,
// with real format verification left to the probe stage.
package validate
