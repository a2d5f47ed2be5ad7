// Package queue provides the bounded FIFO used on the slow side of peers:
// websocket send queues and monitor history.
//
// A Buffer grows by doubling until it reaches its limit; once full at the
// limit it discards the oldest item, so producers (router dispatch) never
// block on a slow consumer.
package queue
