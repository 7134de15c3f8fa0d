// Package keys holds the signing keys used for projection certificates.
//
// Seeds are 32 bytes. An Ed25519 or Dilithium3 key is derived from the same
// seed, so a single stored seed serves either signature algorithm. Public keys
// are written as "<alg>:" + base64(key bytes).
//
// The KeyStore is a small filesystem layout under ~/.mpst/keys with one root
// seed per certifier and one derived seed per protocol role.
package keys
