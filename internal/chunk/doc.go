// Package chunk owns the format-agnostic chunk walker.
//
// Ownership boundary:
// - read header -> dispatch -> seek forward loop
// - clean end-of-stream detection and typed failure kinds
// - bounded nested walks and primitive positioned reads
//
// Concrete formats live in internal/formats and internal/protocol and supply
// their own header type and handler.
package chunk
