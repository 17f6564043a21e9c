// Package value defines the Typed Value: the closed tagged union that carries
// object field values across the marshalling boundary.
//
// This package imports nothing internal. Every other package that moves field
// values in or out of the process depends on it.
//
// Each case is a distinct Go type sealed by an unexported method, so a switch
// over Value is exhaustive by construction. The wire form of any Value is a
// self-describing envelope:
//
//	{"type":"Vector3","value":{"X":1,"Y":2,"Z":3}}
//	{"type":"None"}
//
// Array, Map, Set and Custom carry their payload as a text-encoded JSON blob
// rather than a nested Value tree. Element type information is therefore not
// part of the blob; the reader needs the declared field type to decode it.
package value
