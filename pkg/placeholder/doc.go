// Package placeholder implements the {{key}} personalization syntax used in
// campaign subjects and bodies.
//
// Placeholders are written as {{key}}, whitespace around the key is ignored,
// and keys match case-insensitively against the supplied data. Rendering never
// fails: a missing value renders as an empty string, except the implicit
// "name" key which falls back to a neutral greeting so name-less bulk imports
// still read naturally.
//
// Trust boundary: Render inserts values verbatim, with no HTML escaping.
// Bodies are sanitized before storage (see pkg/sanitizer) and callers are
// responsible for sanitizing recipient-supplied or imported values before
// they reach this package.
package placeholder
