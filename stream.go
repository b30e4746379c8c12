package montage

// StreamKind identifies the media type of an encoded packet.
type StreamKind int

// Stream kinds.
const (
	VideoStream StreamKind = iota
	AudioStream
)

// Stream is an encoded packet carried by a frame when decoding is left to a
// later stage of the graph.
type Stream struct {
	Kind     StreamKind
	Codec    string
	Data     []byte
	Key      bool
	Position int
	// Samples is the number of audio samples the packet decodes to.
	Samples int
}
