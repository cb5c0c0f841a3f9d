// Package exporter writes upload history as CSV.
//
// Output starts with a UTF-8 byte order mark when requested so spreadsheet
// applications detect the encoding. Timestamps are RFC 3339 in UTC; an
// upload that has not finished has an empty finished_at cell.
package exporter
