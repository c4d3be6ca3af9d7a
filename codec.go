package veil

// Codec provides content-type aware marshaling. Configuration documents are
// decoded through a Codec so deployments can keep settings in whatever
// format their other configuration uses.
type Codec interface {
	// ContentType returns the MIME type for this codec (e.g., "application/json").
	ContentType() string

	// Marshal encodes v into bytes.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v.
	Unmarshal(data []byte, v any) error
}
