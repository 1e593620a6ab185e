package a

import "time"

func bare() {
	_ = time.Now() // want "chain time.Now\\(\\) with .UTC\\(\\) or .In\\(\\) so the host zone cannot leak"
}

func converted() {
	_ = time.Now().UTC()
}

func assigned() {
	t := time.Now() // want "chain time.Now\\(\\) with .UTC\\(\\) or .In\\(\\) so the host zone cannot leak"
	_ = t
}

func zoned(loc *time.Location) {
	_ = time.Now().In(loc)
}

func chained() {
	_ = time.Now().UTC().Format(time.RFC3339)
}

// A function value is injection, not a read; only calls are flagged.
var clock = time.Now

func viaClock() {
	_ = clock()
}

func nolintGeneral() {
	//nolint
	_ = time.Now()
}

func nolintSpecific() {
	_ = time.Now() //nolint:timeutc
}

func nolintOther() {
	_ = time.Now() //nolint:otherlinter // want "chain time.Now\\(\\) with .UTC\\(\\) or .In\\(\\) so the host zone cannot leak"
}
