package domain

// PageSession is the volatile transcript of one open widget page.
// Version increases by one on every successful save.
type PageSession struct {
	ID           string
	Turns        []ChatMessage
	Version      int
	LastActivity string
	TTL          int64
}
