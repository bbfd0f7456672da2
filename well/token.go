package well

import "github.com/pkg/errors"

//Token is one allocatable unit in the pool, it carries a store assigned
//identity and an opaque numeric value that is handed to the caller
type Token struct {
	ID    int64
	Value int64
}

var (
	//ErrInvalidCount means the requested count was zero or negative
	ErrInvalidCount = errors.New("requested count must be a positive integer")

	//ErrInsufficientSupply means the pool holds fewer tokens than requested
	ErrInsufficientSupply = errors.New("not enough tokens left in the pool")
)
