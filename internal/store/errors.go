package store

import (
	"github.com/vcsmini/vcsmini/internal/errs"
	"github.com/vcsmini/vcsmini/internal/object"
)

func errNotFound(h object.Hash) error {
	return errs.New(errs.UnknownRevision, "%s: object not found", h)
}

func errWrongType(h object.Hash, want, got object.Kind) error {
	return errs.New(errs.WrongObjectType, "%s: expected %s, got %s", h, want, got)
}

func errBadTOCValue(name string) error {
	return errs.New(errs.Corruption, "write_tree: %q has neither a blob hash nor a nested TOC", name)
}

func errCorruptTransfer(expect, got object.Hash) error {
	return errs.New(errs.Corruption, "transferred object hashes to %s, expected %s", got, expect)
}
