// Package dcache implements the size-class freelist ("dcache") htrie
// consumes through its DCache contract: one lock-free Treiber stack per
// class, intrusively linked through the freed bytes themselves so no
// separate bookkeeping allocation is needed.
package dcache
