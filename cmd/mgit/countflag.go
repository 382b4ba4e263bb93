package main

import (
	"flag"
	"fmt"
	"strconv"
)

// countFlag is both a bool and an int flag, for handling -v -v -v ... the
// way go.git's cmd/dist flag count does.
type countFlag int

func (c *countFlag) String() string {
	return fmt.Sprint(int(*c))
}

func (c *countFlag) Set(s string) error {
	switch s {
	case "true":
		*c++
	case "false":
		*c = 0
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid count %q", s)
		}
		*c = countFlag(n)
	}
	return nil
}

// IsBoolFlag makes -v usable without an explicit value, like flag.boolFlag.
func (c *countFlag) IsBoolFlag() bool {
	return true
}

var _ flag.Value = (*countFlag)(nil)
