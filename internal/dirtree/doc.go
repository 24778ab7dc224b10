// Package dirtree implements a lazily populated, monitor-synchronized cache
// of a directory hierarchy, shared by reference count among tree views.
//
// Only directories are cached. A directory's children are read when a view
// first expands it and are kept in sync with the filesystem through a
// per-directory watch for as long as any view keeps it expanded. Views
// address nodes by Position (a path of sibling indices from the root) and
// learn about structural changes from a Subscription.
//
// All tree mutations happen under one mutex: calls made by views and
// filesystem events drained from the monitor are serialized against each
// other.
package dirtree
