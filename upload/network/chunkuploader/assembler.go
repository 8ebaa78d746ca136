package chunkuploader

import "io"

// Assembler re-buffers a byte stream into fixed-size chunks. Fragments read
// from the source can be of arbitrary size, Next blocks until a full chunk is
// available or the source ends. The last chunk may be shorter than the chunk
// size. Chunks are never empty.
type Assembler struct {
	source    io.Reader
	chunkSize int
	exhausted bool
}

// NewAssembler ...
func NewAssembler(source io.Reader, chunkSize int) *Assembler {
	return &Assembler{
		source:    source,
		chunkSize: chunkSize,
	}
}

// Next returns the next chunk of exactly the configured chunk size, or the
// final shorter chunk when the source ends mid-chunk. Once all content has
// been returned it returns io.EOF. The returned slice is not reused between
// calls.
func (a *Assembler) Next() ([]byte, error) {
	if a.exhausted {
		return nil, io.EOF
	}

	buf := make([]byte, a.chunkSize)
	n, err := io.ReadFull(a.source, buf)
	switch err {
	case nil:
		return buf, nil
	case io.ErrUnexpectedEOF:
		a.exhausted = true
		return buf[:n], nil
	case io.EOF:
		a.exhausted = true
		return nil, io.EOF
	default:
		return nil, err
	}
}
