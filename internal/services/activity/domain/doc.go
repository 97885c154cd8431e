// Package domain holds the activity roster model and the pure admission rules:
// capacity and duplicate-membership checks, owner authorization, and the join
// reward policy. Nothing in this package performs I/O; the app layer composes
// these rules inside one storage transaction per operation.
package domain
