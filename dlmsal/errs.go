package dlmsal

import "errors"

var (
	ErrAssociated          = errors.New("association already active")
	ErrNotAssociated       = errors.New("no active association")
	ErrBlockIndexExhausted = errors.New("block index exhausted")
	ErrUnsupportedCommand  = errors.New("unsupported command")
	ErrIncompleteBlock     = errors.New("incomplete block")
	ErrNotBlock            = errors.New("apdu is not a block transfer")
	ErrCommandMismatch     = errors.New("command does not match long transaction")
	ErrTransactionOpen     = errors.New("long transaction already open")
	ErrNoTransaction       = errors.New("no long transaction open")
	ErrBlockAfterLast      = errors.New("block received after last block")
	ErrBlockNumber         = errors.New("unexpected block number")
)
