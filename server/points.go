package server

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

var errEmptyBody = errors.New("empty request body")

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

func isNumber(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}

// parsePoints decodes a JSON array of [lon, lat] pairs without reflection.
// Points are appended to dst.
func parsePoints(data []byte, dst []orb.Point) ([]orb.Point, error) {
	i, n := 0, len(data)
	skip := func() {
		for i < n && isSpace(data[i]) {
			i++
		}
	}

	skip()
	if i >= n {
		return dst, errEmptyBody
	}
	if data[i] != '[' {
		return dst, fmt.Errorf("expected '[' at offset %d", i)
	}
	i++

	skip()
	if i < n && data[i] == ']' {
		i++
		skip()
		if i != n {
			return dst, fmt.Errorf("unexpected data at offset %d", i)
		}
		return dst, nil
	}

	for {
		skip()
		if i >= n || data[i] != '[' {
			return dst, fmt.Errorf("expected '[' for point at offset %d", i)
		}
		i++

		var p orb.Point
		for j := range 2 {
			skip()
			start := i
			for i < n && isNumber(data[i]) {
				i++
			}
			if start == i {
				return dst, fmt.Errorf("expected number at offset %d", start)
			}
			v, err := strconv.ParseFloat(string(data[start:i]), 64)
			if err != nil {
				return dst, fmt.Errorf("invalid number at offset %d: %w", start, err)
			}
			p[j] = v

			skip()
			if j == 0 {
				if i >= n || data[i] != ',' {
					return dst, fmt.Errorf("expected ',' between coordinates at offset %d", i)
				}
				i++
			}
		}
		if i >= n || data[i] != ']' {
			return dst, fmt.Errorf("expected ']' at end of point at offset %d", i)
		}
		i++
		dst = append(dst, p)

		skip()
		if i >= n {
			return dst, errors.New("unterminated point list")
		}
		if data[i] == ',' {
			i++
			continue
		}
		if data[i] == ']' {
			i++
			break
		}
		return dst, fmt.Errorf("expected ',' or ']' at offset %d", i)
	}

	skip()
	if i != n {
		return dst, fmt.Errorf("unexpected data at offset %d", i)
	}
	return dst, nil
}
