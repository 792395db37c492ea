// Package stats folds alarm records into dashboard counters.
package stats
