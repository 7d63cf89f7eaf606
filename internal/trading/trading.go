// Package trading recalculates wheel trades and keeps open positions priced.
//
// Recalculate derives every computed field of a trade from its stored inputs
// and is safe to call repeatedly. The Scheduler reprices open positions on an
// interval and raises expiration and assignment alerts.
package trading
