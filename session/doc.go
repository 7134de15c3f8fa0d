// Package session implements static verification and projection for
// multiparty session types.
//
// A protocol is described once, from the viewpoint of all participants, as a
// GlobalType tree built from five node kinds:
//
//   - End      terminates a branch.
//   - Interact one role performs an action carrying a message, then continues.
//   - Choice   exactly one of two branches is taken.
//   - Par      two branches run concurrently; their role sets must be disjoint.
//   - Rec      marks a recursion point around a body subtree.
//
// Project derives, for a single role, the LocalType that role must follow:
// Send where it acts, Recv where another role acts, Choice/Par where it takes
// part in both branches, and Skip where it takes part in neither.
//
// Well-formedness is checked eagerly and separately from projection:
//
//   - CheckUniqueLabels rejects trees with duplicate labels (MPST-LBL-001).
//   - Certify / CertifyAll set a Par's witness only when its branches are
//     role-disjoint (MPST-PAR-001).
//
// Project assumes a tree that passed both checks. It refuses uncertified Par
// nodes (MPST-PAR-002) and reports a certified Par whose branches share the
// projected role as an invariant violation (MPST-INV-001).
//
// All functions in this package are pure. GlobalType and LocalType values are
// immutable and safe to share across goroutines.
package session
