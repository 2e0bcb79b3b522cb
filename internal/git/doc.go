// Package git keeps a local checkout of a book hosted in a git repository.
package git
