package tdigest

import (
	"fmt"

	"github.com/pkg/errors"
)

// Op is the kind of a replay command.
type Op int

const (
	// OpCreate creates an empty digest with Command.Compression.
	OpCreate Op = iota
	// OpAdd adds Command.Mean with Command.Weight.
	OpAdd
)

// Command is one step of a replay sequence.
type Command struct {
	Op          Op
	Compression int
	Mean        float64
	Weight      uint64
}

// String ...
func (c Command) String() string {
	switch c.Op {
	case OpCreate:
		return fmt.Sprintf("create %d", c.Compression)
	case OpAdd:
		return fmt.Sprintf("add %v %d", c.Mean, c.Weight)
	default:
		return fmt.Sprintf("op(%d)", int(c.Op))
	}
}

// Commands compresses the digest and exports it as a create command
// followed by one add per centroid in ascending mean order. Applying the
// sequence with Replay yields an equivalent digest.
func (td *TDigest) Commands() []Command {
	td.Compress()
	cmds := make([]Command, 0, 1+td.centroids.Size())
	cmds = append(cmds, Command{Op: OpCreate, Compression: td.compression})
	for _, c := range td.centroids.vec {
		cmds = append(cmds, Command{Op: OpAdd, Mean: c.Mean, Weight: c.Weight})
	}
	return cmds
}

// Replay builds a digest from a command sequence produced by Commands.
func Replay(cmds []Command) (*TDigest, error) {
	if len(cmds) == 0 || cmds[0].Op != OpCreate {
		return nil, errors.New("replay must start with a create command")
	}
	td, err := NewWithCompression(cmds[0].Compression)
	if err != nil {
		return nil, err
	}
	for i, cmd := range cmds[1:] {
		if err := td.Apply(cmd); err != nil {
			return nil, errors.Wrapf(err, "command %d", i+1)
		}
	}
	return td, nil
}

// Apply executes a single add command against td.
func (td *TDigest) Apply(cmd Command) error {
	if cmd.Op != OpAdd {
		return errors.Errorf("unexpected %v", cmd)
	}
	return td.Add(cmd.Mean, cmd.Weight)
}
