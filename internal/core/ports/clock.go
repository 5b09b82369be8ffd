package ports

// Clock supplies the ledger's notion of current time, in unix seconds.
// Deadlines in signed requests are absolute values on this clock.
type Clock interface {
	Now() int64
}
