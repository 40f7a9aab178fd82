package directory

import "github.com/sarchlab/meshsim/internal/common"

// AddressHomeLookup maps an address to the core whose directory slice owns
// it (spec §3.3/§4.4.4). Controllers is the subset of all cores selected by
// the topology model (spec §4.5.3: on Clos, memory controllers live
// preferentially on middle routers).
type AddressHomeLookup struct {
	controllers []common.CoreId
	shift       uint
}

// NewAddressHomeLookup builds a lookup over controllers, where
// homeLookupParam is the number of low address bits ignored before hashing
// (spec §6.1 perf_model/dram_directory/home_lookup_param), matching the
// original's bit-shift-then-modulo home selection.
func NewAddressHomeLookup(controllers []common.CoreId, homeLookupParam uint) AddressHomeLookup {
	return AddressHomeLookup{controllers: append([]common.CoreId(nil), controllers...), shift: homeLookupParam}
}

// Home returns the controller core owning addr.
func (h AddressHomeLookup) Home(addr common.Address) common.CoreId {
	if len(h.controllers) == 0 {
		return common.Broadcast
	}
	idx := int((uint64(addr) >> h.shift)) % len(h.controllers)
	return h.controllers[idx]
}

// Controllers returns the ordered set of controller cores.
func (h AddressHomeLookup) Controllers() []common.CoreId {
	return append([]common.CoreId(nil), h.controllers...)
}
