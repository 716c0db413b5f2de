package keyspace

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomhq/tdigest"
)

// ErrBadCommand is returned for unknown commands, wrong arity and
// arguments that do not parse.
var ErrBadCommand = errors.New("bad command")

// Command names understood by Exec.
const (
	CmdNew      = "TDIGEST.NEW"
	CmdAdd      = "TDIGEST.ADD"
	CmdCDF      = "TDIGEST.CDF"
	CmdQuantile = "TDIGEST.QUANTILE"
	CmdMerge    = "TDIGEST.MERGE"
	CmdDebug    = "TDIGEST.DEBUG"
)

// Command is one parsed text command.
type Command struct {
	Name string
	Args []string
}

// String formats the command so that ParseCommand reads it back.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, arg := range c.Args {
		b.WriteByte(' ')
		if arg == "" || strings.IndexFunc(arg, func(r rune) bool { return unicode.IsSpace(r) || r == '"' }) >= 0 {
			arg = strconv.Quote(arg)
		}
		b.WriteString(arg)
	}
	return b.String()
}

// ParseCommand splits line into whitespace separated words. A word may be
// a Go style double quoted string. The command name is upper cased.
func ParseCommand(line string) (Command, error) {
	var words []string
	rest := strings.TrimSpace(line)
	for rest != "" {
		var word string
		if rest[0] == '"' {
			quoted, err := strconv.QuotedPrefix(rest)
			if err != nil {
				return Command{}, errors.Wrapf(ErrBadCommand, "unterminated quote in %q", line)
			}
			word, _ = strconv.Unquote(quoted)
			rest = rest[len(quoted):]
			if rest != "" && !unicode.IsSpace(rune(rest[0])) {
				return Command{}, errors.Wrapf(ErrBadCommand, "missing space after %s", quoted)
			}
		} else {
			end := strings.IndexFunc(rest, unicode.IsSpace)
			if end < 0 {
				end = len(rest)
			}
			word, rest = rest[:end], rest[end:]
		}
		words = append(words, word)
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	}
	if len(words) == 0 {
		return Command{}, errors.Wrap(ErrBadCommand, "empty command")
	}
	return Command{Name: strings.ToUpper(words[0]), Args: words[1:]}, nil
}

// Exec runs cmd against the keyspace. The reply depends on the command:
//
//	TDIGEST.NEW key [compression]             "OK"
//	TDIGEST.ADD key value weight [value weight ...]  uint64 weight added
//	TDIGEST.CDF key x [x ...]                 []float64, nil for a missing or empty key
//	TDIGEST.QUANTILE key q [q ...]            []float64, nil for a missing or empty key
//	TDIGEST.MERGE dest src [src ...]          "OK"
//	TDIGEST.DEBUG key                         tdigest.Info
func (ks *Keyspace) Exec(cmd Command) (interface{}, error) {
	ks.log.WithFields(logrus.Fields{"command": cmd.Name, "args": len(cmd.Args)}).Debug("exec")

	switch cmd.Name {
	case CmdNew:
		if len(cmd.Args) != 1 && len(cmd.Args) != 2 {
			return nil, arity(cmd)
		}
		compression := ks.defaultCompression
		if len(cmd.Args) == 2 {
			c, err := strconv.ParseInt(cmd.Args[1], 10, 64)
			if err != nil || c <= 0 || c > tdigest.MaxCompression {
				return nil, errors.Wrapf(tdigest.ErrInvalidCompression, "got %q", cmd.Args[1])
			}
			compression = int(c)
		}
		if err := ks.Create(cmd.Args[0], compression); err != nil {
			return nil, err
		}
		return "OK", nil

	case CmdAdd:
		if len(cmd.Args) < 3 || len(cmd.Args)%2 != 1 {
			return nil, arity(cmd)
		}
		samples := make([]tdigest.Sample, 0, len(cmd.Args)/2)
		for i := 1; i < len(cmd.Args); i += 2 {
			value, err := strconv.ParseFloat(cmd.Args[i], 64)
			if err != nil {
				return nil, errors.Wrapf(tdigest.ErrInvalidValue, "got %q", cmd.Args[i])
			}
			weight, err := strconv.ParseUint(cmd.Args[i+1], 10, 64)
			if err != nil {
				return nil, errors.Wrapf(tdigest.ErrInvalidWeight, "got %q", cmd.Args[i+1])
			}
			samples = append(samples, tdigest.Sample{Value: value, Weight: weight})
		}
		return ks.Add(cmd.Args[0], samples)

	case CmdCDF:
		if len(cmd.Args) < 2 {
			return nil, arity(cmd)
		}
		xs, err := parseFloats(cmd.Args[1:])
		if err != nil {
			return nil, err
		}
		ret, ok := ks.CDF(cmd.Args[0], xs)
		if !ok {
			return []float64(nil), nil
		}
		return ret, nil

	case CmdQuantile:
		if len(cmd.Args) < 2 {
			return nil, arity(cmd)
		}
		qs, err := parseFloats(cmd.Args[1:])
		if err != nil {
			return nil, err
		}
		ret, ok, err := ks.Quantile(cmd.Args[0], qs)
		if err != nil {
			return nil, err
		}
		if !ok {
			return []float64(nil), nil
		}
		return ret, nil

	case CmdMerge:
		if len(cmd.Args) < 2 {
			return nil, arity(cmd)
		}
		if err := ks.Merge(cmd.Args[0], cmd.Args[1:]...); err != nil {
			return nil, err
		}
		return "OK", nil

	case CmdDebug:
		if len(cmd.Args) != 1 {
			return nil, arity(cmd)
		}
		return ks.Info(cmd.Args[0])
	}
	return nil, errors.Wrapf(ErrBadCommand, "unknown command %q", cmd.Name)
}

func arity(cmd Command) error {
	return errors.Wrapf(ErrBadCommand, "wrong number of arguments for %s", cmd.Name)
}

func parseFloats(args []string) ([]float64, error) {
	ret := make([]float64, len(args))
	for i, arg := range args {
		f, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrBadCommand, "not a number: %q", arg)
		}
		ret[i] = f
	}
	return ret, nil
}
