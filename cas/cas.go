// Package cas is a content-addressed store: values are serialized, hashed,
// and stored once under their hash.
package cas

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

type CAS interface {
	Put(item Hashable) (Hash, error)
	Has(hash Hash) bool
	Len() int
}

type Serde interface {
	Serialize(w io.Writer) error
	Deserialize(r io.Reader) error
}

type Hashable interface {
	Serde
}

type directStore interface {
	getValue(h Hash) (bool, []byte, error)
}

type Hash uint64

func (h Hash) String() string {
	return fmt.Sprintf("0x%016x", uint64(h))
}

var ErrNotFound = errors.New("hash not found in CAS")

// Retrieve decodes the value stored under hash into a fresh T.
func Retrieve[T any, PT interface {
	*T
	Hashable
}](c CAS, hash Hash) (PT, error) {
	v, ok := c.(directStore)
	if !ok {
		return nil, errors.New("CAS does not support direct retrieval")
	}

	has, data, err := v.getValue(hash)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}

	out := PT(new(T))
	if err := out.Deserialize(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("deserializing %s: %w", hash, err)
	}
	return out, nil
}
