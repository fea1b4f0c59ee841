// Package main provides the ingrediscan command line tool.
//
// Usage:
//
//	ingrediscan serve
//	ingrediscan analyze label.jpg [more.jpg ...]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
