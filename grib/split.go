/*
Copyright © 2023 the meteodata-lab authors.
This file is part of meteodata-lab.

meteodata-lab is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

meteodata-lab is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with meteodata-lab.  If not, see <http://www.gnu.org/licenses/>.
*/

package grib

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// maxMessageLen bounds the message size read from a length field so
// that a corrupted length cannot trigger a huge allocation.
const maxMessageLen = 1 << 31

// A Scanner reads consecutive GRIB2 messages from a stream. Bytes
// between messages, such as index lines or padding, are skipped.
type Scanner struct {
	r *bufio.Reader
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReaderSize(r, 1<<16)}
}

// Next returns the bytes of the next message in the stream. It returns
// io.EOF after the last message.
func (s *Scanner) Next() ([]byte, error) {
	for {
		if err := s.seekMagic(); err != nil {
			return nil, err
		}
		head, err := s.r.Peek(16)
		if err != nil {
			if err == io.EOF {
				return nil, fmt.Errorf("%w: stream ends inside indicator section", ErrTruncated)
			}
			return nil, err
		}
		// The magic can occur in packed data of a damaged stream; skip
		// candidates with an implausible indicator section.
		total := binary.BigEndian.Uint64(head[8:16])
		if head[7] != 2 || total < 20 || total > maxMessageLen {
			if _, err := s.r.Discard(1); err != nil {
				return nil, err
			}
			continue
		}
		msg := make([]byte, total)
		if _, err := io.ReadFull(s.r, msg); err != nil {
			if err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("%w: stream ends inside message", ErrTruncated)
			}
			return nil, err
		}
		if string(msg[total-4:]) != "7777" {
			return nil, fmt.Errorf("%w: missing end of message marker", ErrCorrupted)
		}
		return msg, nil
	}
}

func (s *Scanner) seekMagic() error {
	for {
		b, err := s.r.Peek(4)
		if len(b) < 4 {
			if err == nil || err == io.EOF {
				return io.EOF
			}
			return err
		}
		if string(b) == "GRIB" {
			return nil
		}
		if _, err := s.r.Discard(1); err != nil {
			return err
		}
	}
}
