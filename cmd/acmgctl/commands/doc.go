// Package commands implements acmgctl, the command line client of the rating engine.
// Local commands work on the SQLite store in the data directory; rating commands talk to
// a remote rating backend when --backend is given.
package commands
