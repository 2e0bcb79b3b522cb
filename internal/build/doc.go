// Package build runs complete book builds.
//
// A build loads the book's files from the configured file list, then runs
// the stage pipeline once per enabled output format. All entry points (the
// build command, watch mode and tests) go through BuildService.
package build
