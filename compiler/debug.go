package compiler

import (
	"fmt"
	"os"
	"strings"

	"github.com/chazu/paxy/ir"
	"github.com/chazu/paxy/vm"
)

// DebugDump renders a resolved stream followed by the disassembly of the
// code linked from it. code may be nil when linking failed.
func DebugDump(resolved []ir.Item, code *vm.Code) string {
	var b strings.Builder
	b.WriteString("== RESOLVED ==\n")
	b.WriteString(ir.Dump(resolved))
	b.WriteString("== DISASSEMBLY ==\n")
	if code == nil {
		b.WriteString("<disassembly skipped: link failed>\n")
	} else {
		b.WriteString(vm.Disassemble(code))
	}
	return b.String()
}

func writeDebug(opts Options, resolved []ir.Item, code *vm.Code) error {
	dump := DebugDump(resolved, code)
	if opts.DebugOut == "" {
		log.Debug(dump)
		return nil
	}
	f, err := os.OpenFile(opts.DebugOut, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := fmt.Fprint(f, dump); err != nil {
		return err
	}
	return nil
}
