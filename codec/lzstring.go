package codec

import (
	"errors"
	"strings"
	"unicode/utf16"
)

// keyURISafe is the 65-character alphabet LZ-string uses for its
// URI-safe encoding. Six bits of compressed stream map to one character.
const keyURISafe = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+-$"

// ErrMalformedBlob is returned when a compressed blob does not decode.
var ErrMalformedBlob = errors.New("codec: malformed compressed blob")

var uriSafeIndex = func() map[byte]uint32 {
	m := make(map[byte]uint32, len(keyURISafe))
	for i := 0; i < len(keyURISafe); i++ {
		m[keyURISafe[i]] = uint32(i)
	}
	return m
}()

// CompressToEncodedURIComponent compresses s with the LZ-string scheme
// into its URI-safe alphabet.
func CompressToEncodedURIComponent(s string) string {
	return lzCompress(utf16.Encode([]rune(s)), 6, func(v uint32) byte {
		return keyURISafe[v]
	})
}

// DecompressFromEncodedURIComponent reverses CompressToEncodedURIComponent.
// Spaces are tolerated in place of '+', matching what URL decoding does to
// the alphabet.
func DecompressFromEncodedURIComponent(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	s = strings.ReplaceAll(s, " ", "+")
	units, err := lzDecompress(len(s), 32, func(i int) (uint32, error) {
		v, ok := uriSafeIndex[s[i]]
		if !ok {
			return 0, ErrMalformedBlob
		}
		return v, nil
	})
	if err != nil {
		return "", err
	}
	return string(utf16.Decode(units)), nil
}

type bitWriter struct {
	out       []byte
	val       uint32
	position  int
	perChar   int
	charOfInt func(uint32) byte
}

// writeBits emits n bits of value, least significant first.
func (w *bitWriter) writeBits(value uint32, n int) {
	for i := 0; i < n; i++ {
		w.val = w.val<<1 | (value & 1)
		if w.position == w.perChar-1 {
			w.position = 0
			w.out = append(w.out, w.charOfInt(w.val))
			w.val = 0
		} else {
			w.position++
		}
		value >>= 1
	}
}

func (w *bitWriter) flush() {
	for {
		w.val <<= 1
		if w.position == w.perChar-1 {
			w.out = append(w.out, w.charOfInt(w.val))
			return
		}
		w.position++
	}
}

func lzCompress(input []uint16, bitsPerChar int, charOfInt func(uint32) byte) string {
	if len(input) == 0 {
		return ""
	}

	dict := make(map[string]uint32)
	toCreate := make(map[string]bool)
	var w string
	enlargeIn := uint32(2)
	dictSize := uint32(3)
	numBits := 2
	bw := &bitWriter{perChar: bitsPerChar, charOfInt: charOfInt}

	bump := func() {
		enlargeIn--
		if enlargeIn == 0 {
			enlargeIn = 1 << numBits
			numBits++
		}
	}

	produce := func(w string) {
		if toCreate[w] {
			first := uint32([]rune(w)[0])
			if first < 256 {
				bw.writeBits(0, numBits)
				bw.writeBits(first, 8)
			} else {
				bw.writeBits(1, numBits)
				bw.writeBits(first, 16)
			}
			bump()
			delete(toCreate, w)
		} else {
			bw.writeBits(dict[w], numBits)
		}
		bump()
	}

	for _, unit := range input {
		c := string(utf16.Decode([]uint16{unit}))
		if _, ok := dict[c]; !ok {
			dict[c] = dictSize
			dictSize++
			toCreate[c] = true
		}
		wc := w + c
		if _, ok := dict[wc]; ok {
			w = wc
		} else {
			produce(w)
			dict[wc] = dictSize
			dictSize++
			w = c
		}
	}

	if w != "" {
		produce(w)
	}
	bw.writeBits(2, numBits)
	bw.flush()
	return string(bw.out)
}

type bitReader struct {
	val        uint32
	position   uint32
	index      int
	length     int
	resetValue uint32
	next       func(int) (uint32, error)
}

// readBits collects n bits from the stream, least significant first.
func (r *bitReader) readBits(n int) (uint32, error) {
	var bits uint32
	for power := uint32(1); n > 0; n-- {
		resb := r.val & r.position
		r.position >>= 1
		if r.position == 0 {
			r.position = r.resetValue
			if r.index >= r.length {
				return 0, ErrMalformedBlob
			}
			v, err := r.next(r.index)
			if err != nil {
				return 0, err
			}
			r.val = v
			r.index++
		}
		if resb > 0 {
			bits |= power
		}
		power <<= 1
	}
	return bits, nil
}

func lzDecompress(length int, resetValue uint32, next func(int) (uint32, error)) ([]uint16, error) {
	first, err := next(0)
	if err != nil {
		return nil, err
	}
	r := &bitReader{val: first, position: resetValue, index: 1, length: length, resetValue: resetValue, next: next}

	readChar := func(bits int) ([]uint16, error) {
		v, err := r.readBits(bits)
		if err != nil {
			return nil, err
		}
		return []uint16{uint16(v)}, nil
	}

	dictionary := make([][]uint16, 3, 16)
	enlargeIn := uint32(4)
	dictSize := uint32(4)
	numBits := 3

	code, err := r.readBits(2)
	if err != nil {
		return nil, err
	}
	var entry []uint16
	switch code {
	case 0:
		entry, err = readChar(8)
	case 1:
		entry, err = readChar(16)
	case 2:
		return nil, nil
	default:
		return nil, ErrMalformedBlob
	}
	if err != nil {
		return nil, err
	}
	dictionary = append(dictionary, entry)
	w := entry
	result := append([]uint16(nil), entry...)

	for {
		code, err = r.readBits(numBits)
		if err != nil {
			return nil, err
		}
		switch code {
		case 0:
			entry, err = readChar(8)
			if err != nil {
				return nil, err
			}
			dictionary = append(dictionary, entry)
			code = dictSize
			dictSize++
			enlargeIn--
		case 1:
			entry, err = readChar(16)
			if err != nil {
				return nil, err
			}
			dictionary = append(dictionary, entry)
			code = dictSize
			dictSize++
			enlargeIn--
		case 2:
			return result, nil
		}

		if enlargeIn == 0 {
			enlargeIn = 1 << numBits
			numBits++
		}

		switch {
		case int(code) < len(dictionary) && dictionary[code] != nil:
			entry = dictionary[code]
		case code == dictSize:
			entry = append(append([]uint16(nil), w...), w[0])
		default:
			return nil, ErrMalformedBlob
		}
		result = append(result, entry...)

		grown := append(append([]uint16(nil), w...), entry[0])
		dictionary = append(dictionary, grown)
		dictSize++
		enlargeIn--
		w = entry

		if enlargeIn == 0 {
			enlargeIn = 1 << numBits
			numBits++
		}
	}
}
