package keyspace

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/axiomhq/tdigest"
)

// Rewrite writes one TDIGEST.NEW line per key followed by one TDIGEST.ADD
// line per centroid. Replaying the output with ReplayLog into an empty
// keyspace rebuilds every digest exactly. Digests are compressed first.
func (ks *Keyspace) Rewrite(w io.Writer) error {
	bw := bufio.NewWriter(w)
	keys := ks.Keys()
	written := 0
	for _, key := range keys {
		e, ok := ks.lookup(key)
		if !ok {
			continue
		}
		e.Lock()
		cmds := e.td.Commands()
		e.Unlock()

		for _, c := range cmds {
			if err := writeLogLine(bw, key, c); err != nil {
				return errors.Wrapf(err, "rewrite %q", key)
			}
		}
		written++
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush rewrite")
	}
	ks.log.WithField("keys", written).Info("rewrote log")
	return nil
}

func writeLogLine(w *bufio.Writer, key string, c tdigest.Command) error {
	var line Command
	switch c.Op {
	case tdigest.OpCreate:
		line = Command{Name: CmdNew, Args: []string{key, strconv.Itoa(c.Compression)}}
	case tdigest.OpAdd:
		line = Command{Name: CmdAdd, Args: []string{
			key,
			strconv.FormatFloat(c.Mean, 'g', -1, 64),
			strconv.FormatUint(c.Weight, 10),
		}}
	default:
		return errors.Errorf("unexpected %v", c)
	}
	if _, err := w.WriteString(line.String()); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// ReplayLog executes every command in r, one per line. Blank lines and
// lines starting with # are skipped. It stops at the first failing line
// and returns the number of commands applied.
func (ks *Keyspace) ReplayLog(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	applied, lineno := 0, 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			return applied, errors.Wrapf(err, "line %d", lineno)
		}
		if _, err := ks.Exec(cmd); err != nil {
			return applied, errors.Wrapf(err, "line %d", lineno)
		}
		applied++
	}
	if err := scanner.Err(); err != nil {
		return applied, errors.Wrap(err, "read log")
	}
	ks.log.WithFields(logrus.Fields{"commands": applied, "keys": len(ks.Keys())}).Info("replayed log")
	return applied, nil
}
