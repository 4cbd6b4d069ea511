// Package parse recovers structured data from model output. Providers asked
// for JSON still wrap it in markdown fences or surround it with prose often
// enough that strict decoding alone would fail a large share of turns, so
// extraction first strips fences and then falls back to the outermost brace
// block before handing the candidate to the decoder.
package parse
