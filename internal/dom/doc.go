// Package dom is the document query facility used by extraction and
// validation.
//
// It wraps github.com/PuerkitoBio/goquery over the golang.org/x/net/html node
// tree. Selectors are compiled with github.com/andybalholm/cascadia so that a
// malformed selector is reported as an error instead of silently matching
// nothing, which is what goquery's string-based Find does.
//
// Documents are read-only after Parse and safe to query from several
// goroutines.
package dom
