// Package files finds the workbooks a command line upload should process.
package files
