// Package project implements multibranch projects: a template, the children
// generated from it for every live branch, and the operations that keep
// them in sync.
//
// A Parent is loaded with Engine.Load. Engine.Sync runs one pass:
//
//  1. without a source every child is deleted;
//  2. branch heads are fetched once, a failure aborts the pass unchanged;
//  3. a child is created for every new branch;
//  4. children without a branch are handed to the RetentionPolicy;
//  5. the template is copied into every child, then the branch's source
//     binding is applied, then the child's own overrides;
//  6. disabled children stay disabled;
//  7. new children are built unless suppressed;
//  8. listeners are notified.
//
// Every pass starts by re-reading the template, the parent state and the
// children from the store.
//
// Failures of a single child are recorded in the pass Report and never
// stop the other children. Passes, cascades, template updates and explicit
// deletions of one parent are serialized by a lock owned by the parent and
// by the project's lock file in the store, which every process sharing the
// state directory takes; different parents are independent.
package project
