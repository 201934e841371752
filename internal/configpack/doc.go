// Package configpack seals and opens encrypted per-item configuration
// packs (.efpack files).
//
// A pack is a small binary envelope around a JSON document: a fixed magic
// header, a random XChaCha20-Poly1305 nonce, then the sealed ciphertext.
// The symmetric key is loaded from a key file configured at startup.
//
// Packs exist so automation templates on removable media can be carried
// between installations without exposing their contents. When both a
// plaintext .json file and a sibling .efpack exist, loaders prefer the
// encrypted pack.
package configpack
