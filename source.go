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

package meteodatalab

import (
	"fmt"
	"io"
	"os"

	"github.com/MeteoSwiss/meteodata-lab/grib"
)

// A Source yields raw encoded messages one at a time. Next returns
// io.EOF after the last message.
type Source interface {
	Next() ([]byte, error)
}

// ReaderSource splits a byte stream into messages.
type ReaderSource struct {
	sc *grib.Scanner
}

func NewReaderSource(r io.Reader) *ReaderSource {
	return &ReaderSource{sc: grib.NewScanner(r)}
}

func (s *ReaderSource) Next() ([]byte, error) {
	return s.sc.Next()
}

// BytesSource yields a fixed list of messages.
type BytesSource struct {
	msgs [][]byte
	i    int
}

func NewBytesSource(msgs ...[]byte) *BytesSource {
	return &BytesSource{msgs: msgs}
}

func (s *BytesSource) Next() ([]byte, error) {
	if s.i >= len(s.msgs) {
		return nil, io.EOF
	}
	m := s.msgs[s.i]
	s.i++
	return m, nil
}

// FileSource yields the messages of a list of files in order. Files are
// opened lazily and closed as soon as they are exhausted.
type FileSource struct {
	paths []string
	i     int
	f     *os.File
	sc    *grib.Scanner
}

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

func (s *FileSource) Next() ([]byte, error) {
	for {
		if s.sc == nil {
			if s.i >= len(s.paths) {
				return nil, io.EOF
			}
			f, err := os.Open(s.paths[s.i])
			if err != nil {
				return nil, fmt.Errorf("meteodatalab: while opening %s: %v", s.paths[s.i], err)
			}
			s.i++
			s.f = f
			s.sc = grib.NewScanner(f)
		}
		msg, err := s.sc.Next()
		if err == io.EOF {
			name := s.f.Name()
			if cerr := s.f.Close(); cerr != nil {
				return nil, fmt.Errorf("meteodatalab: while closing %s: %v", name, cerr)
			}
			s.f, s.sc = nil, nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("meteodatalab: while reading %s: %w", s.f.Name(), err)
		}
		return msg, nil
	}
}

// Close releases the currently open file, if any. It only needs to be
// called when the source is abandoned before reaching io.EOF.
func (s *FileSource) Close() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f, s.sc = nil, nil
	return err
}
