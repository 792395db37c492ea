// Package alarms manages alarm records and their lifecycle:
// active -> acknowledged -> resolved, with false_positive reachable from
// either open state.
package alarms
