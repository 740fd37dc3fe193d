package types

// BatchHeader is the signed part of a batch. It commits to the ordered
// list of contained transaction ids.
type BatchHeader struct {
	SignerPublicKey string   `cramberry:"1"`
	TransactionIDs  []string `cramberry:"2"`
}

// Batch is the unit of atomic submission and status polling. Either all
// of its transactions are committed or none are.
type Batch struct {
	// Serialized BatchHeader.
	Header []byte `cramberry:"1"`
	// Hex signature over Header; the batch id.
	HeaderSignature string        `cramberry:"2"`
	Transactions    []Transaction `cramberry:"3"`
}

// ID returns the batch id.
func (b Batch) ID() string { return b.HeaderSignature }

// BatchList is the body of a batch submission.
type BatchList struct {
	Batches []Batch `cramberry:"1"`
}

// Status is the processing status of a submitted batch.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCommitted Status = "COMMITTED"
	StatusInvalid   Status = "INVALID"
	// StatusUnknown is reported for ids the node has never seen.
	StatusUnknown Status = "UNKNOWN"
)

// Terminal returns true if the status will not change any more.
func (s Status) Terminal() bool {
	return s == StatusCommitted || s == StatusInvalid
}

// InvalidTransactionInfo explains why a transaction made its batch
// invalid.
type InvalidTransactionInfo struct {
	ID      string `cramberry:"1" json:"id"`
	Message string `cramberry:"2" json:"message"`
}

// BatchStatus is the status of one batch as reported by the gateway.
type BatchStatus struct {
	ID                  string                   `cramberry:"1" json:"id"`
	Status              Status                   `cramberry:"2" json:"status"`
	InvalidTransactions []InvalidTransactionInfo `cramberry:"3" json:"invalid_transactions,omitempty"`
}
