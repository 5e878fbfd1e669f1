// Package cart reads and writes CaRT containers, the neutered transport format
// used to move malware samples around without tripping scanners.
//
// A container is laid out as:
//
//	mandatory header   "CART" | version int16 | reserved uint64 | key [16]byte | optional header length uint64
//	optional header    RC4(JSON)
//	payload            RC4(zlib(data))
//	optional footer    RC4(JSON{md5, sha1, sha256, length})
//	mandatory footer   "TRAC" | reserved uint64 | optional footer offset uint64 | optional footer length uint64
//
// Integers are little-endian. Every encrypted segment starts a fresh RC4
// stream with the same key. Containers packed with the default key embed it in
// the header; containers packed with an override key carry sixteen zero bytes
// and need the key again to unpack.
package cart
