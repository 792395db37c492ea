// Package mqtt wraps the paho client with topic-pattern handler routing and
// automatic re-subscription after reconnects.
package mqtt
