package program

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Hash returns a hex digest identifying the program's probabilistic
// structure and rules. Two programs with equal hashes have the same
// choice space and resolved texts, so cached per-choice model counts
// transfer between them.
func (p *Program) Hash() string {
	h := sha256.New()
	io.WriteString(h, p.Rules)
	for _, pf := range p.PF {
		fmt.Fprintf(h, "|pf:%s:%v", pf.Name, pf.P)
	}
	for _, cf := range p.CF {
		fmt.Fprintf(h, "|cf:%s:%v:%v", cf.Name, cf.L, cf.U)
	}
	for _, ad := range p.AD {
		fmt.Fprintf(h, "|ad:%v:%v", ad.Names, ad.P)
	}
	for _, nr := range p.NR {
		fmt.Fprintf(h, "|nr:%s", nr.Name)
	}
	for _, na := range p.NA {
		fmt.Fprintf(h, "|na:%v", na.Names)
	}
	return hex.EncodeToString(h.Sum(nil))
}
