package compiler

import (
	"errors"
	"fmt"
)

// ErrTenantContextRequired is returned when injection is enabled and no
// tenant context accompanies the query.
var ErrTenantContextRequired = errors.New("tenant context is required; pass one or disable tenant injection")

// ErrEmptyInsert is returned for an insert with no rows.
var ErrEmptyInsert = errors.New("insert requires at least one row of data")

// InvalidOrderDirectionError reports an ORDER BY direction outside ASC/DESC.
type InvalidOrderDirectionError struct {
	Direction string
}

func (e *InvalidOrderDirectionError) Error() string {
	return fmt.Sprintf("invalid order direction %q; use ASC or DESC", e.Direction)
}

// UnsupportedQueryTypeError reports an AST with an unknown discriminator.
type UnsupportedQueryTypeError struct {
	Type QueryType
}

func (e *UnsupportedQueryTypeError) Error() string {
	return fmt.Sprintf("unsupported query type %q", e.Type)
}
