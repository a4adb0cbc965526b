// Package testsupport provides helpers shared by package tests: a temp-dir
// config factory, store openers with cleanup, and in-memory fakes for the
// local record store and the remote document store. The remote fake records
// write order so ordering properties can be asserted. Not imported by
// production code.
package testsupport
