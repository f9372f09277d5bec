package encoding

import "io"

type Stream interface {
	Offset() uint64
	Read([]byte) (int, error)
}

type readerStream struct {
	r   io.ReaderAt
	off int64
}

// NewStream reads r sequentially from off. Reads are all or nothing.
func NewStream(r io.ReaderAt, off int64) Stream {
	return &readerStream{r, off}
}

func (rs *readerStream) Offset() uint64 {
	return uint64(rs.off)
}

func (rs *readerStream) Read(b []byte) (int, error) {
	n, err := rs.r.ReadAt(b, rs.off)
	if err == nil && n < len(b) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return n, err
	}
	rs.off += int64(n)
	return n, nil
}
