package domain

import "fmt"

// Key identifies one delivery: a record identity bound to a channel.
// At-most-once delivery holds per key for the lifetime of the seen store.
type Key struct {
	Identity string
	Channel  string
}

// keyVersion tags the current on-disk key format. Earlier revisions wrote
// the bare identity without a channel; Variants covers both.
const keyVersion = "v2"

// String returns the current tagged composite form.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", keyVersion, k.Channel, k.Identity)
}

// Variants returns every string form under which this key may appear in a
// store written by any revision, current form first. This is the single
// migration-lookup point: a hit on any variant counts as delivered, which
// prevents a redelivery storm after the key-scheme upgrade.
func (k Key) Variants() []string {
	return []string{
		k.String(),
		k.Identity,
	}
}
