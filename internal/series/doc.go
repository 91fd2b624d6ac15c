// Package series holds live time-series data and the operations the plot
// pipeline applies to it.
//
// A Series only ever grows forward in time: Append drops anything that is not
// newer than the last stored sample, which lets the poller re-request
// overlapping ranges without producing duplicates.
//
// Merge aligns an independent series against a dependent one for X-vs-Y
// plots (for example strain against pressure) by averaging the independent
// values inside each dependent time window.
package series
