// Package types defines all wire data types of the cookiejar
// transaction family: the action payload, transaction and batch
// envelopes, batch statuses, state entries and processor messages.
//
// These are plain Go structs with cramberry struct tags for
// deterministic binary serialization, so the same logical value always
// encodes to the same bytes and hashes over those bytes are meaningful.
// Types that travel over the JSON gateway also carry json tags.
package types

// Payload is the action request carried by a transaction.
type Payload struct {
	Action string `cramberry:"1"`
	Amount uint64 `cramberry:"2"`
}

// StateEntry is a value stored at a storage address.
type StateEntry struct {
	Address string `cramberry:"1" json:"address"`
	Data    []byte `cramberry:"2" json:"data"`
}
