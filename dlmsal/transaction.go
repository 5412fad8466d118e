package dlmsal

import (
	"fmt"
	"slices"

	"github.com/cybroslabs/dlms-session-go/base"
)

// Target is the object addressed by a long transaction, LN uses class id, obis and attribute or method index,
// SN the short name address.
type Target struct {
	ClassID uint16
	Obis    DlmsObis
	Index   int8
	Address uint16
}

// LongTransaction accumulates data of one block transferred service.
type LongTransaction struct {
	command base.CosemTag
	targets []Target
	data    []byte
	next    uint32 // expected block number
	done    bool
}

func NewLongTransaction(command base.CosemTag, targets []Target, data []byte) *LongTransaction {
	return &LongTransaction{
		command: command,
		targets: slices.Clone(targets),
		data:    slices.Clone(data),
		next:    1,
	}
}

func (t *LongTransaction) Command() base.CosemTag {
	return t.command
}

// Targets returns copy of targets, they are fixed for the whole transaction.
func (t *LongTransaction) Targets() []Target {
	return slices.Clone(t.targets)
}

// Append extends the data, command has to be the one the transaction was opened with.
func (t *LongTransaction) Append(command base.CosemTag, b []byte) error {
	if command != t.command {
		return base.NewFramingError(fmt.Errorf("%w: got %v, transaction is %v", ErrCommandMismatch, command, t.command))
	}
	t.data = append(t.data, b...)
	return nil
}

// ReplaceData drops accumulated data and seeds it again, used when restarting after a recoverable block error.
func (t *LongTransaction) ReplaceData(b []byte) {
	t.data = append(t.data[:0], b...)
}

func (t *LongTransaction) Data() []byte {
	return slices.Clone(t.data)
}

func (t *LongTransaction) Len() int {
	return len(t.data)
}

// Done reports that the last block was accepted.
func (t *LongTransaction) Done() bool {
	return t.done
}

// OpenTransaction opens the one long transaction of the session, block numbering starts from 1.
func (s *Settings) OpenTransaction(command base.CosemTag, targets []Target) (*LongTransaction, error) {
	if s.transaction != nil && !s.transaction.done {
		return nil, base.NewFramingError(fmt.Errorf("%w: %v", ErrTransactionOpen, s.transaction.command))
	}
	s.transaction = NewLongTransaction(command, targets, nil)
	s.ResetBlockIndex()
	s.count = 0
	s.index = 0
	s.dlogf("dlmsal: long transaction %v opened for %d targets", command, len(targets))
	return s.transaction, nil
}

// Transaction returns the open long transaction or nil.
func (s *Settings) Transaction() *LongTransaction {
	return s.transaction
}

// AcceptBlock appends the received block to the open transaction. Complete data are returned with the last block.
// Block without transaction or after the last one is a segmentation error, the settings are reset then.
func (s *Settings) AcceptBlock(command base.CosemTag, number uint32, last bool, data []byte) ([]byte, bool, error) {
	t := s.transaction
	if t == nil {
		s.Reset()
		return nil, false, base.NewSegmentationError(fmt.Errorf("%w: block %d of %v", ErrNoTransaction, number, command))
	}
	if t.done {
		s.Reset()
		return nil, false, base.NewSegmentationError(fmt.Errorf("%w: block %d of %v", ErrBlockAfterLast, number, command))
	}
	if number != t.next {
		return nil, false, base.NewFramingError(fmt.Errorf("%w: expected %d, got %d", ErrBlockNumber, t.next, number))
	}
	if err := t.Append(command, data); err != nil {
		return nil, false, err
	}
	s.blockindex = number
	s.index = number
	t.next++
	s.dlogf("dlmsal: block %d of %v accepted, %d bytes, last %v", number, command, len(data), last)
	if !last {
		s.count = number + 1
		return nil, false, nil
	}
	s.count = number
	t.done = true
	return t.Data(), true, nil
}

// CloseTransaction drops the transaction once its data were consumed.
func (s *Settings) CloseTransaction() {
	s.transaction = nil
	s.ResetBlockIndex()
	s.count = 0
	s.index = 0
}

// AbortTransaction drops unfinished transaction at a block boundary.
func (s *Settings) AbortTransaction() {
	if s.transaction != nil && !s.transaction.done {
		s.logf("dlmsal: long transaction %v aborted after %d bytes", s.transaction.command, s.transaction.Len())
	}
	s.CloseTransaction()
}
