package cli

import (
	"bufio"
	"errors"
	"io"
	"math/big"
	"strings"

	apperrors "github.com/agbru/fibsquares/internal/errors"
	"github.com/agbru/fibsquares/internal/fibonacci"
)

// maxInputLine bounds the line read from stdin; an index of this many
// digits is already far beyond anything useful.
const maxInputLine = 1 << 20

// ReadIndex reads the first line of r and parses it as a non-negative
// decimal integer of any size. Surrounding whitespace is ignored.
//
// Returns:
//   - *big.Int: The parsed index.
//   - error: A ValidationError for field "n" when the line is empty, not an
//     integer, or negative; the read error otherwise.
func ReadIndex(r io.Reader) (*big.Int, error) {
	limited := io.LimitReader(r, maxInputLine+1)
	line, err := bufio.NewReaderSize(limited, 4096).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if len(line) > maxInputLine {
		return nil, apperrors.NewValidationError("n", "input line is too long", nil)
	}
	return ParseIndexArg(line)
}

// ParseIndexArg parses an index given on the command line or in the
// environment, with the same rules as ReadIndex.
func ParseIndexArg(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	n, err := fibonacci.ParseIndex(s)
	switch {
	case errors.Is(err, fibonacci.ErrNegativeIndex):
		return nil, apperrors.NewValidationError("n", err.Error(), s)
	case err != nil && s == "":
		return nil, apperrors.NewValidationError("n", "no input: expected a non-negative integer", nil)
	case err != nil:
		return nil, apperrors.NewValidationError("n", err.Error(), s)
	}
	return n, nil
}
