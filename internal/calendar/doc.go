// Package calendar implements the date arithmetic of the Stata value
// model: epoch day counts relative to 1960-01-01 and the fixed
// historical leap-second table used for legacy timestamp encoding.
package calendar
