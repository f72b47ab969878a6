package blockcipher

import (
	"errors"
	"fmt"
	"io"
)

// DecryptStream reads encrypted blocks from src strictly in order and writes
// the plaintext to dst. Each stored block is blockSize+Overhead bytes except
// the last, which may be shorter. Only one block is held in memory.
func DecryptStream(dst io.Writer, src io.Reader, blockSize int, key []byte) (int64, error) {
	if blockSize <= 0 {
		return 0, ErrInvalidBlockSize
	}

	buf := make([]byte, blockSize+Overhead)
	var written int64
	for index := 0; ; index++ {
		n, err := io.ReadFull(src, buf)
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		last := errors.Is(err, io.ErrUnexpectedEOF)
		if err != nil && !last {
			return written, fmt.Errorf("blockcipher: read block %d: %w", index, err)
		}

		plain, err := DecryptChunk(buf[:n], key)
		if err != nil {
			return written, fmt.Errorf("block %d: %w", index, err)
		}
		m, err := dst.Write(plain)
		written += int64(m)
		if err != nil {
			return written, fmt.Errorf("blockcipher: write block %d: %w", index, err)
		}
		if last {
			return written, nil
		}
	}
}
