// Package protocol groups the wire-level chunk consumers.
//
// Ownership boundary:
// - frame: fixed-header message captures
// - tlv: 7-byte id/type/length field streams
package protocol
