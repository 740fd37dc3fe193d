package types

// TransactionHeader is the signed part of a transaction. Its serialized
// bytes are what the signer signs, so every field is committed to by the
// transaction id.
type TransactionHeader struct {
	SignerPublicKey  string   `cramberry:"1"`
	BatcherPublicKey string   `cramberry:"2"`
	FamilyName       string   `cramberry:"3"`
	FamilyVersion    string   `cramberry:"4"`
	// Addresses the transaction may read.
	Inputs []string `cramberry:"5"`
	// Addresses the transaction may write.
	Outputs []string `cramberry:"6"`
	// Ids of transactions that must be committed first.
	Dependencies []string `cramberry:"7"`
	// Makes the header unique even for identical payloads.
	Nonce string `cramberry:"8"`
	// Hex SHA-512 of the payload.
	PayloadSHA512 string `cramberry:"9"`
}

// Transaction is a signed, uniquely identified envelope around one
// payload.
type Transaction struct {
	// Serialized TransactionHeader.
	Header []byte `cramberry:"1"`
	// Hex signature over Header; the transaction id.
	HeaderSignature string `cramberry:"2"`
	Payload         []byte `cramberry:"3"`
}

// ID returns the transaction id.
func (t Transaction) ID() string { return t.HeaderSignature }

// TransactionRequest is a transaction as delivered to a handler: the
// header is already decoded and the signature already verified.
type TransactionRequest struct {
	Header    TransactionHeader `cramberry:"1"`
	Payload   []byte            `cramberry:"2"`
	Signature string            `cramberry:"3"`
}
