package cfg

import (
	"flag"
	"strings"

	"github.com/docker/go-units"
)

// ByteSize is a flag.Value for byte counts in binary units ("50MiB", "10m",
// "1048576").
type ByteSize int64

func (b *ByteSize) String() string {
	if b == nil {
		return "0B"
	}
	return units.BytesSize(float64(*b))
}

func (b *ByteSize) Set(s string) error {
	n, err := units.RAMInBytes(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) Int64() int64 { return int64(b) }

func byteSizeVar(fs *flag.FlagSet, p *ByteSize, name string, def int64, usage string) {
	*p = ByteSize(def)
	fs.Var(p, name, usage)
}
