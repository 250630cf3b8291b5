// Package ecash implements the cryptographic core of a Chaumian e-cash scheme
// built on Blind Diffie-Hellman Key Exchange (BDHKE).
//
// Overview:
//   - A Mint holds one keypair per denomination (Keyset) and a SpentSet of redeemed secrets
//   - A Wallet blinds hash-to-curve points of fresh secrets, the Mint signs them blindly,
//     and the Wallet unblinds the result into a Note
//   - Every blind signature carries a DLEQ proof so the Wallet can check the Mint used the
//     published key for that denomination
//   - Swap burns input notes and signs new blinded outputs of equal total value
//
// Security Model:
//   - Note verification recomputes Y = HashToCurve(secret); a note is valid iff C = k*Y
//   - Spending is an atomic insert-if-absent on the SpentSet, so concurrent redemptions of
//     one secret have at most one winner
//   - Swap and Redeem validate everything before touching the SpentSet and spend their
//     inputs as a single batch, so a failed call has no side effects
//   - All randomness comes from crypto/rand unless a reader is injected for tests
//
// References:
//   - D. Wagner, "Chaumian ecash without RSA" (2009)
//   - Cashu NUT-00 and NUT-12
package ecash
