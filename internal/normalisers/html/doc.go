// Package html normalises HTML pages such as exported help-centre
// articles. The page is parsed with golang.org/x/net/html; scripts and
// styles are dropped and heading elements are rewritten as Markdown
// headings.
package html
