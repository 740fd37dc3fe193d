package processor

import (
	"strings"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/address"
	"github.com/blockberries/cookiejar/types"
)

// Compile-time interface check.
var _ cookiejar.Context = (*boundedContext)(nil)

// boundedContext is the state view of one transaction. It serves reads
// from the prefetched inputs, overlays the transaction's own writes and
// refuses access outside the declared address sets.
type boundedContext struct {
	inputs  []string
	outputs []string
	values  map[string][]byte
	writes  []types.StateEntry
	index   map[string]int
}

func newBoundedContext(h types.TransactionHeader, prefetched []types.StateEntry) *boundedContext {
	c := &boundedContext{
		inputs:  h.Inputs,
		outputs: h.Outputs,
		values:  make(map[string][]byte, len(prefetched)),
		index:   make(map[string]int),
	}
	for _, e := range prefetched {
		c.values[e.Address] = e.Data
	}
	return c
}

func (c *boundedContext) GetState(addresses ...string) ([]types.StateEntry, error) {
	var out []types.StateEntry
	for _, addr := range addresses {
		if !covered(addr, c.inputs) {
			return nil, cookiejar.NewInvalidTransaction("read of undeclared address %s", addr)
		}
		if data, ok := c.values[addr]; ok && len(data) > 0 {
			out = append(out, types.StateEntry{Address: addr, Data: data})
		}
	}
	return out, nil
}

func (c *boundedContext) SetState(entries ...types.StateEntry) ([]string, error) {
	for _, e := range entries {
		if err := address.Validate(e.Address); err != nil {
			return nil, cookiejar.NewInvalidTransaction("write to malformed address %q", e.Address)
		}
		if !covered(e.Address, c.outputs) {
			return nil, cookiejar.NewInvalidTransaction("write to undeclared address %s", e.Address)
		}
	}
	written := make([]string, 0, len(entries))
	for _, e := range entries {
		data := append([]byte(nil), e.Data...)
		c.values[e.Address] = data
		if i, ok := c.index[e.Address]; ok {
			c.writes[i].Data = data
		} else {
			c.index[e.Address] = len(c.writes)
			c.writes = append(c.writes, types.StateEntry{Address: e.Address, Data: data})
		}
		written = append(written, e.Address)
	}
	return written, nil
}

// covered reports whether addr equals or extends one of the declared
// addresses or prefixes.
func covered(addr string, declared []string) bool {
	for _, d := range declared {
		if d != "" && strings.HasPrefix(addr, d) {
			return true
		}
	}
	return false
}
