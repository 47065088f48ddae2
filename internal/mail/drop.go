package mail

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// DropSender writes each message as an .eml file into a directory instead of
// sending it. File names sort in delivery order.
type DropSender struct {
	dir  string
	from string
	seq  atomic.Uint64
}

func NewDropSender(dir, from string) (*DropSender, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create mail drop directory: %w", err)
	}
	if from == "" {
		from = "no-reply@localhost"
	}
	return &DropSender{dir: dir, from: from}, nil
}

func (d *DropSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateRecipient(msg.To); err != nil {
		return err
	}

	now := time.Now()
	name := fmt.Sprintf("%s-%06d-%s.eml",
		now.UTC().Format("20060102T150405.000000000"),
		d.seq.Add(1),
		sanitize(msg.To),
	)
	path := filepath.Join(d.dir, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, compose(d.from, msg, now), 0o644); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return os.Rename(tmp, path)
}

func sanitize(addr string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case r == '@':
			return '_'
		default:
			return -1
		}
	}, addr)
}
