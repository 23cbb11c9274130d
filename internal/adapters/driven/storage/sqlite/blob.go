package sqlite

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
)

// vectorBlob stores a []float32 as a little-endian BLOB. A nil vector is NULL.
type vectorBlob []float32

// Value implements driver.Valuer.
func (v vectorBlob) Value() (driver.Value, error) {
	if len(v) == 0 {
		return nil, nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

// Scan implements sql.Scanner.
func (v *vectorBlob) Scan(src any) error {
	switch data := src.(type) {
	case nil:
		*v = nil
		return nil
	case []byte:
		if len(data)%4 != 0 {
			return fmt.Errorf("vector blob of %d bytes is not a float32 array", len(data))
		}
		if len(data) == 0 {
			*v = nil
			return nil
		}
		out := make([]float32, len(data)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
		*v = out
		return nil
	default:
		return fmt.Errorf("cannot scan %T into vector blob", src)
	}
}
