// Package catalog retrieves the list of available releases.
//
// The catalog is the public downloads page; release anchors are scanned out
// of its HTML and turned into domain Release records, preserving page order.
// Page order is the implicit priority order downstream, so no sorting happens
// here.
package catalog
