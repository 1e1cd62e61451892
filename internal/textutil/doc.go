// Package textutil holds small string helpers shared by the store and CLI.
package textutil
