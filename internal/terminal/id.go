package terminal

import "strconv"

// ID uniquely identifies a terminal session. It is assigned once by
// the session registry and never changes.
type ID uint64

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}
