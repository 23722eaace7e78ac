// Package pkgctl is the single importable entry point front ends embed: it
// wires the admin-directory layout, package database, filesystem node table,
// trigger index, and archive pipeline into one Session, the way the teacher's
// top-level dep package exposes Ctx/Project to cmd/dep rather than asking a
// front end to assemble the solver's collaborators itself.
package pkgctl

// Version is the module's own release string, reported by "pkgctl --version"
// the way the teacher's cmd/dep/main.go reports its own.
const Version = "0.1.0"
